package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaclpipe/shaclpipe/mapping"
)

func TestParseConfigPreservesDeclarationOrder(t *testing.T) {
	t.Parallel()

	cfg, err := mapping.ParseConfig([]byte(personMappingYAML))
	require.NoError(t, err)

	assert.Equal(t, "PersonShape", cfg.Shape)
	assert.Equal(t, "Person", cfg.Type)
	assert.Equal(t, "cepi:person/", cfg.BaseURI)
	assert.Equal(t, "PersonIdentifiers", cfg.IDSource)
	assert.Equal(t, "first_pipe_split", cfg.IDTransform)

	slots := make([]string, 0, len(cfg.Properties))
	for _, p := range cfg.Properties {
		slots = append(slots, p.Slot)
	}

	assert.Equal(t, []string{
		"hasPersonName", "hasPersonBirth", "hasPersonSexGender",
		"hasPersonDemographicRace", "hasPersonIdentification",
		"hasRecordStatus", "hasDataCollection",
	}, slots)

	plan, ok := cfg.Find("hasPersonIdentification")
	require.True(t, ok)
	assert.Equal(t, mapping.CardinalityMultiple, plan.Cardinality)
	assert.Equal(t, "|", plan.SplitOn)

	require.NotNil(t, cfg.RecordStatusDefaults)

	rule, ok := cfg.RecordStatusDefaults.Find("RecordStatusCode")
	require.True(t, ok)
	require.NotNil(t, rule.Value)
	assert.Equal(t, "Active", *rule.Value)
}

func TestParseConfigMissingShape(t *testing.T) {
	t.Parallel()

	_, err := mapping.ParseConfig([]byte("type: Person\n"))
	require.ErrorIs(t, err, mapping.ErrParse)
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	require.NoError(t, mapping.ValidateSchema([]byte(personMappingYAML)))

	err := mapping.ValidateSchema([]byte("shape: Person\nbogus_key: 1\n"))
	require.ErrorIs(t, err, mapping.ErrSchema)

	err = mapping.ValidateSchema([]byte("type: Person\n"))
	require.ErrorIs(t, err, mapping.ErrSchema, "missing shape fails the schema")
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := mapping.ParseConfig([]byte(personMappingYAML))
	require.NoError(t, err)

	out, err := mapping.Encode(cfg)
	require.NoError(t, err)

	reparsed, err := mapping.ParseConfig(out)
	require.NoError(t, err)

	assert.Equal(t, cfg.Shape, reparsed.Shape)
	assert.Equal(t, len(cfg.Properties), len(reparsed.Properties))

	for i := range cfg.Properties {
		assert.Equal(t, cfg.Properties[i].Slot, reparsed.Properties[i].Slot)
	}
}
