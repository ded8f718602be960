package core

import (
	"strings"

	"github.com/google/uuid"
)

// DocumentNamespaceBase prefixes generated document URIs.
const DocumentNamespaceBase = "https://spdx.org/spdxdocs/"

// NewDocumentURI returns a unique SPDX document namespace of the form
// <base><name>-<uuid>.
func NewDocumentURI(name string) string {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		name = "document"
	}
	return DocumentNamespaceBase + strings.ReplaceAll(name, " ", "-") + "-" + uuid.NewString()
}
