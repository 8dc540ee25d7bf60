// Package skillsift embeds the assessment recommendation engine in a Go
// process: catalog, embedding chain and ranking pipeline behind a single
// client, no HTTP server required.
//
// A client needs a catalog snapshot and an embedding provider:
//
//	client, _ := skillsift.New(ctx,
//	    skillsift.WithCatalogSnapshot("snapshot.json"),
//	    skillsift.WithGemini(os.Getenv("GEMINI_API_KEY"), "gemini-embedding-001"),
//	)
//	defer client.Close()
//
//	res, _ := client.Recommend(ctx, "junior java developer, max 40 minutes", nil)
//	for _, r := range res.Recommendations {
//	    fmt.Println(r.ID, r.Score)
//	}
//
// Any embedding provider can be plugged in through WithEmbedder; the
// built-in retry, cache and budget decorators are then skipped and the
// caller owns the full embedding path:
//
//	client, _ := skillsift.New(ctx,
//	    skillsift.WithCatalogSnapshot("snapshot.json"),
//	    skillsift.WithVectorDimensions(8),
//	    skillsift.WithEmbedder(myEmbedder),
//	)
//
// The catalog can be hot-swapped at runtime: LoadCatalog re-reads the
// snapshot and replaces the serving generation atomically while in-flight
// Recommend calls finish against the previous one.
package skillsift
