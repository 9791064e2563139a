package factory

import (
	"fmt"

	"docqa-be/pkg/retrieval"
	"docqa-be/pkg/retrieval/colpali"
	"docqa-be/pkg/retrieval/lexical"
)

func NewBackend(backendType string, opts ...retrieval.Option) (retrieval.Backend, error) {
	switch backendType {
	case "colpali", "":
		return colpali.NewBackend(opts...), nil
	case "lexical":
		return lexical.NewBackend(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval backend: %s", backendType)
	}
}
