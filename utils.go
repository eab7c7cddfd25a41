package greenledger

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const URIScheme = "gl"

func JsonPrint(tag string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: error marshaling: %v\n", tag, err)
		return
	}
	fmt.Printf("%s: %s\n", tag, string(b))
}

// ParseRecordURI splits gl://<registry>/<id>. The id part may be empty when the
// uri points at a registry itself.
func ParseRecordURI(escaped string) (string, uint64, error) {
	uriString, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", 0, fmt.Errorf("invalid uri encoding")
	}
	uri, err := url.Parse(uriString)
	if err != nil {
		return "", 0, fmt.Errorf("invalid uri")
	}

	if uri.Scheme != URIScheme {
		return "", 0, fmt.Errorf("unsupported uri scheme")
	}

	registry := uri.Host
	if registry == "" {
		return "", 0, fmt.Errorf("missing registry")
	}

	key := strings.TrimPrefix(uri.Path, "/")
	if key == "" {
		return registry, 0, nil
	}

	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid record id %q", key)
	}

	return registry, id, nil
}

func ComposeRecordURI(registry string, id uint64) string {
	u := &url.URL{
		Scheme: URIScheme,
		Host:   registry,
		Path:   "/" + strconv.FormatUint(id, 10),
	}
	return u.String()
}
