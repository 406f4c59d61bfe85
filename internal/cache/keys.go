package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Kind namespaces cache keys
type Kind string

const (
	KindFunction Kind = "func"
	KindProduct  Kind = "product"
	KindCustomer Kind = "customer"
	KindInfo     Kind = "info"
)

// GenerateKey joins a kind and a discriminator into a cache key
func GenerateKey(kind Kind, discriminator string) string {
	return string(kind) + ":" + discriminator
}

// FunctionKey builds the memoization key of a named function call.
// Parameters are serialized with map keys sorted at every nesting level, so the
// key does not depend on insertion order. The encoded segment never contains ':'
// which keeps keys of distinct (name, params) pairs distinct.
func FunctionKey(name string, params map[string]interface{}) (string, error) {
	canonical, err := CanonicalizeParams(params)
	if err != nil {
		return "", err
	}
	return GenerateKey(KindFunction, name+":"+base64.RawURLEncoding.EncodeToString(canonical)), nil
}

// CanonicalizeParams serializes params into their canonical JSON form
func CanonicalizeParams(params map[string]interface{}) ([]byte, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	// encoding/json sorts map keys lexicographically
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize params: %w", err)
	}
	return data, nil
}

// ProductQueryKey builds a key for a free-text product query
func ProductQueryKey(query string) string {
	return GenerateKey(KindProduct, Slug(query))
}

// CustomerKey builds the key of a cached customer profile
func CustomerKey(canonicalPhone string) string {
	return GenerateKey(KindCustomer, canonicalPhone)
}

// InfoKey builds the key of a static informational answer
func InfoKey(topic, language string) string {
	return GenerateKey(KindInfo, topic+":"+language)
}

// Slug case-folds a query, drops punctuation and collapses whitespace into '-'
func Slug(query string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(query) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
