package events

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://schemas.geo-sink.local/"

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

// schemaFile maps each kind to its element schema.
var schemaFile = map[Kind]string{
	KindSpacesCreated:            "spacesCreated",
	KindGovernancePluginsCreated: "governancePluginsCreated",
	KindEditorsAdded:             "membership",
	KindEditorsRemoved:           "membership",
	KindMembersAdded:             "membership",
	KindMembersRemoved:           "membership",
	KindSubspacesAdded:           "subspacesAdded",
	KindSubspacesRemoved:         "subspacesRemoved",
	KindProfilesRegistered:       "profilesRegistered",
	KindRoleChanges:              "roleChanges",
	KindEntries:                  "entries",
	KindProposalsCreated:         "proposalsCreated",
	KindVotesCast:                "votesCast",
	KindProposalsProcessed:       "proposalsProcessed",
	KindProposalsExecuted:        "proposalsExecuted",
}

var extraSchemas = []string{"action", "proposalMetadata", "uriData"}

func loadSchemas() error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		names := append([]string(nil), extraSchemas...)
		seen := map[string]bool{}
		for _, name := range schemaFile {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for _, name := range names {
			raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
			if err != nil {
				schemaErr = err
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBase+name+".json", doc); err != nil {
				schemaErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		compiled := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := c.Compile(schemaBase + name + ".json")
			if err != nil {
				schemaErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
		schemas = compiled
	})
	return schemaErr
}

// validate checks one raw JSON document against a named schema.
func validate(name string, raw []byte) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return s.Validate(inst)
}
