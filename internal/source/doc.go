// Package source defines the content fetch port and its manifest adapter.
//
// The download manager depends only on the Fetcher interface. Errors
// returned through it follow one taxonomy:
//
//   - *RateLimitError: throttled, wait and retry the same request
//   - ErrParse: the data does not look like what was expected
//   - ErrAuthRequired: the session is missing or expired
//   - ErrNetwork: transport failure after the client's own retries
//
// Classify maps any error, including *fs.PathError from the disk, onto a Kind.
//
// # Manifest adapter
//
//	client := http.FromSettings(settings, http.WithCookie(source.StaticSession(settings.Cookie).Cookie))
//	m, err := source.LoadManifest(ctx, client, "comic.json")
//	src, err := source.NewManifestSource(m, client)
package source
