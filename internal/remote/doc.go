// Package remote is the HTTP client for the remote membership API.
//
// The API exposes three calls per resource (an offer):
//
//	GET    {base}/{remoteId}/product_variants?page=N&per_page=M
//	POST   {base}/{remoteId}/add_variant      {"shopify_variant_ids": [...]}
//	DELETE {base}/{remoteId}/remove_variant   {"shopify_variant_ids": [...]}
//
// ListMembers consumes the listing to exhaustion and returns raw member
// values extracted with a gojq expression. AddMembers and RemoveMembers do
// not interpret the result: they return a Response that the reconciler
// classifies, because retry, lock-wait and bisection decisions belong to the
// engine rather than the transport.
package remote
