// Package pagination fetches every page of a WSAPI query.
//
// WSAPI answers a query with one page of results and a TotalResultCount.
// FetchAll issues the first request itself, derives the remaining start
// offsets from the page size and the total, and hands them to RunAll, which
// spreads them over a small fixed worker pool (1 to 4 workers, taken from
// the connection). Each worker requests its pages one at a time.
//
// Example usage:
//
//	conn, _ := client.New(client.DefaultConfig())
//	fetcher := pagination.NewFetcher(conn)
//	req := client.NewRequest(baseURL+"/defect", map[string]string{"query": "(State = Open)"})
//	doc, err := fetcher.FetchAll(ctx, req, pagination.DefaultOptions())
//
// The fetch:
//   - Merges pagesize and start=1 under the caller's parameters
//   - Stops at the smaller of Options.Limit and TotalResultCount
//   - Buckets page tasks by sequence number modulo the worker count
//   - Aborts on the first failed page; there is no partial result and no retry
//   - Returns results in page order regardless of completion order
package pagination
