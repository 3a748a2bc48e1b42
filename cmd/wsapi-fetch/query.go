package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
	"github.com/Sternrassler/rally-wsapi-client/pkg/pagination"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	query       string
	fetch       string
	order       string
	workspace   string
	project     string
	params      []string
	pageSize    int
	limit       int
	resultsOnly bool
}

// newQueryCmd runs a paged query and prints the merged document.
func newQueryCmd(root *rootOptions) *cobra.Command {
	var q queryOptions

	cmd := &cobra.Command{
		Use:   "query <type>",
		Short: "Fetch every page of a WSAPI query",
		Long: `Fetch every page of a WSAPI query and print the merged QueryResult.

The type is a WSAPI resource such as defect, hierarchicalrequirement or
task. Pages after the first are fetched by the configured worker pool;
the first failed page aborts the whole query.

Examples:
  wsapi-fetch query defect --query "(State = Open)" --fetch FormattedID,Name
  wsapi-fetch query task --limit 500 --results
  wsapi-fetch query defect -p workspace=/workspace/123 -p projectScopeDown=true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, q, args[0])
		},
	}

	cmd.Flags().StringVarP(&q.query, "query", "q", "", "WSAPI query expression")
	cmd.Flags().StringVarP(&q.fetch, "fetch", "f", "", "comma separated fields to fetch")
	cmd.Flags().StringVarP(&q.order, "order", "o", "", "sort order")
	cmd.Flags().StringVar(&q.workspace, "workspace", "", "workspace ref")
	cmd.Flags().StringVar(&q.project, "project", "", "project ref")
	cmd.Flags().StringArrayVarP(&q.params, "param", "p", nil, "extra query parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&q.pageSize, "page-size", 0, "results per page (default from config)")
	cmd.Flags().IntVar(&q.limit, "limit", -1, "maximum results, 0 for no limit (default from config)")
	cmd.Flags().BoolVar(&q.resultsOnly, "results", false, "print only the Results array")

	return cmd
}

func runQuery(cmd *cobra.Command, root *rootOptions, q queryOptions, resource string) error {
	params, err := q.requestParams()
	if err != nil {
		return err
	}

	a, err := root.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.authorize(ctx); err != nil {
		return err
	}

	opts := pagination.Options{PageSize: a.cfg.PageSize, Limit: a.cfg.Limit}
	if q.pageSize > 0 {
		opts.PageSize = q.pageSize
	}
	if q.limit >= 0 {
		opts.Limit = q.limit
	}

	doc, err := a.fetcher.FetchAll(ctx, client.NewRequest(a.cfg.URL(resource), params), opts)
	if err != nil {
		return err
	}

	return writeDocument(cmd.OutOrStdout(), doc, q.resultsOnly)
}

// requestParams collects the WSAPI parameters set by flags.
func (q queryOptions) requestParams() (map[string]string, error) {
	params := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			params[key] = value
		}
	}
	set("query", q.query)
	set("fetch", q.fetch)
	set("order", q.order)
	set("workspace", q.workspace)
	set("project", q.project)

	for _, kv := range q.params {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: want key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}

func writeDocument(w io.Writer, doc *envelope.Document, resultsOnly bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if resultsOnly {
		return enc.Encode(doc.Envelope.Results)
	}
	return enc.Encode(doc)
}
