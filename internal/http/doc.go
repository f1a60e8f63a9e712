// Package http provides the HTTP transport used by the content source.
//
// The client adds the headers the image host expects (User-Agent, Referer
// and the session Cookie), bounds every request with a timeout and retries
// transient failures on its own:
//
//	client := http.FromSettings(settings, http.WithCookie(session.Cookie))
//	data, err := client.Get(ctx, url)
//
// Transient failures never reach the caller unless retries are exhausted.
// Responses that carry a decision for the caller, such as 429 with
// Retry-After or 403, are returned at once as *StatusError.
package http
