// Package main generates the OpenAPI document for the skyrad HTTP API. It
// registers the shared routes against stub handlers, so no daemon, config or
// serial hardware is needed.
//
// Usage:
//
//	go run ./cmd/skyra-openapi > openapi.json
//	go run ./cmd/skyra-openapi -yaml > openapi.yaml
//	go run ./cmd/skyra-openapi -output openapi.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/skyrad/internal/http/routes"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	outputFile := flag.String("output", "", "Output file path (default: stdout)")
	outputYAML := flag.Bool("yaml", false, "Output as YAML instead of JSON")
	baseURL := flag.String("base-url", "", "Base URL for the API server")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	data, err := generate(version, *baseURL, *outputYAML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating OpenAPI document: %v\n", err)
		os.Exit(1)
	}

	if *outputFile == "" {
		_, _ = io.WriteString(os.Stdout, string(data))
		return
	}
	if err := os.WriteFile(*outputFile, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "OpenAPI document written to %s\n", *outputFile)
}

// generate renders the document as indented JSON or block-style YAML.
func generate(version, baseURL string, asYAML bool) ([]byte, error) {
	api := humachi.New(chi.NewRouter(), routes.NewHumaConfig(version, baseURL))
	routes.Register(api, routes.StubHandlers())

	data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
	if err != nil {
		return nil, err
	}
	if !asYAML {
		return append(data, '\n'), nil
	}

	// JSON is valid YAML; going through a node keeps the key order.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}
