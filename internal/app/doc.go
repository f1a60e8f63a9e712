// Package app wires settings, logging, the HTTP client, the metadata store
// and the download manager for the command line binaries.
//
// Usage:
//
//	a, err := app.New(settings, os.Stderr)
//	defer a.Close()
//	src, err := a.OpenManifest(ctx, "comic.json")
//	chapters, err := app.NewCatalog(src.Comic(), a.Store).Select(nil)
//	mgr, err := a.NewManager(src)
//	mgr.Enqueue(chapters)
package app
