package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the default configuration tuned for text-embedding-004.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "text-embedding-004",
		Dimensions:          768,
		DistanceMetric:      "cosine",
		DocumentInstruction: "Represent this assessment for retrieval: ",
		QueryInstruction:    "Represent this job requirement for retrieving assessments: ",
	}
}
