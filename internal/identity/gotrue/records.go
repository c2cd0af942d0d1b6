package gotrue

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
)

const (
	singleObject   = "application/vnd.pgrst.object+json"
	noRowsCode     = "PGRST116"
	representation = "return=representation"
)

func (c *Client) Get(ctx context.Context, jar identity.Jar, table, key string, dest any) error {
	err := c.do(ctx, call{
		name:   "rest.get",
		method: http.MethodGet,
		path:   "/rest/v1/" + url.PathEscape(table),
		query:  url.Values{"id": {"eq." + key}, "select": {"*"}},
		token:  accessToken(jar),
		header: map[string]string{"Accept": singleObject},
	}, dest)
	return recordError(err, table, key)
}

func (c *Client) Update(ctx context.Context, jar identity.Jar, table, key string, fields map[string]any, dest any) error {
	err := c.do(ctx, call{
		name:   "rest.update",
		method: http.MethodPatch,
		path:   "/rest/v1/" + url.PathEscape(table),
		query:  url.Values{"id": {"eq." + key}},
		token:  accessToken(jar),
		body:   fields,
		header: map[string]string{"Accept": singleObject, "Prefer": representation},
	}, dest)
	return recordError(err, table, key)
}

func accessToken(jar identity.Jar) string {
	t, ok := jar.Tokens()
	if !ok {
		return ""
	}
	return t.AccessToken
}

// recordError marks the single-object "no rows" answer as ErrNotFound while
// keeping the provider's error and message in the chain. Row-level security
// hides foreign rows the same way.
func recordError(err error, table, key string) error {
	pe, ok := identity.AsProviderError(err)
	if !ok {
		return err
	}
	if pe.Code == noRowsCode || pe.Status == http.StatusNotAcceptable {
		return errors.Wrapf(errors.Mark(err, identity.ErrNotFound), "%s %s", table, key)
	}
	return err
}
