package pagecache

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/uncover/pkg/primary"
)

// DefaultNamespace is used when a source is created without a namespace.
const DefaultNamespace = "pages"

// Key identifies one cached page.
type Key struct {
	// Namespace separates sources sharing one Redis database.
	Namespace string

	// Query is the query the page was fetched for.
	Query primary.Query

	// From and To are the requested range, To exclusive.
	From int
	To   int
}

// KeyFor returns the cache key for req.
func KeyFor(namespace string, req primary.Request) Key {
	return Key{
		Namespace: namespace,
		Query:     req.Query,
		From:      req.From,
		To:        req.To,
	}
}

// String generates a deterministic cache key string.
//
// Example:
//
//	uncover:pages:q=go+books:from=20:to=30
func (k Key) String() string {
	return k.prefix() + fmt.Sprintf("q=%s:from=%d:to=%d", url.QueryEscape(string(k.Query)), k.From, k.To)
}

// pattern matches every key of namespace.
func pattern(namespace string) string {
	return Key{Namespace: namespace}.prefix() + "*"
}

func (k Key) prefix() string {
	namespace := strings.Trim(k.Namespace, ":")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return "uncover:" + namespace + ":"
}
