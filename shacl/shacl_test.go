package shacl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/shacl"
)

const personSHACL = `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix ceds: <https://ceds.ed.gov/terms#> .
@prefix cepi: <https://cepi.example.org/shapes#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .

cepi:PersonShape
    a sh:NodeShape ;
    sh:targetClass ceds:Person ;
    sh:closed true ;
    sh:ignoredProperties ( ceds:recordOrigin ) ;
    sh:property [
        sh:path ceds:hasPersonName ;
        sh:node cepi:PersonNameShape ;
        sh:class ceds:PersonName ;
        sh:minCount 1 ;
        sh:maxCount 1
    ] ;
    sh:property [
        sh:path ceds:hasPersonBirth ;
        sh:node cepi:PersonBirthShape ;
        sh:maxCount 1
    ] ;
    sh:property [
        sh:path ceds:hasPersonSexGender ;
        sh:node cepi:PersonSexGenderShape ;
        sh:maxCount 1
    ] ;
    sh:property [
        sh:path ceds:hasPersonDemographicRace ;
        sh:node cepi:PersonDemographicRaceShape ;
        sh:maxCount 1
    ] ;
    sh:property [
        sh:path ceds:hasPersonIdentification ;
        sh:node cepi:PersonIdentificationShape ;
        sh:minCount 1
    ] ;
    sh:property [
        sh:path ceds:hasRecordStatus ;
        sh:node cepi:RecordStatusShape ;
        sh:maxCount 1
    ] ;
    sh:property [
        sh:path ceds:hasDataCollection ;
        sh:node cepi:DataCollectionShape ;
        sh:maxCount 1
    ] .

cepi:PersonNameShape a sh:NodeShape ;
    sh:targetClass ceds:PersonName ;
    sh:property [ sh:path ceds:FirstName ; sh:datatype xsd:string ; sh:minCount 1 ; sh:maxCount 1 ] ;
    sh:property [ sh:path ceds:MiddleName ; sh:datatype xsd:string ; sh:maxCount 1 ] ;
    sh:property [ sh:path ceds:LastOrSurname ; sh:datatype xsd:string ; sh:minCount 1 ; sh:maxCount 1 ] ;
    sh:property [ sh:path ceds:GenerationCodeOrSuffix ; sh:datatype xsd:string ; sh:maxCount 1 ] .

cepi:PersonBirthShape a sh:NodeShape ;
    sh:targetClass ceds:PersonBirth ;
    sh:property [ sh:path ceds:Birthdate ; sh:datatype xsd:date ; sh:minCount 1 ; sh:maxCount 1 ] .

cepi:PersonSexGenderShape a sh:NodeShape ;
    sh:targetClass ceds:PersonSexGender ;
    sh:property [ sh:path ceds:hasSex ; sh:in ( ceds:Sex_Female ceds:Sex_Male ) ; sh:maxCount 1 ] .

cepi:PersonDemographicRaceShape a sh:NodeShape ;
    sh:targetClass ceds:PersonDemographicRace ;
    sh:property [ sh:path ceds:hasRaceAndEthnicity ] .

cepi:PersonIdentificationShape a sh:NodeShape ;
    sh:targetClass ceds:PersonIdentification ;
    sh:property [ sh:path ceds:PersonIdentifier ; sh:minCount 1 ; sh:maxCount 1 ] ;
    sh:property [ sh:path ceds:IdentificationSystem ; sh:maxCount 1 ] ;
    sh:property [ sh:path ceds:PersonIdentifierType ; sh:maxCount 1 ] .

cepi:RecordStatusShape a sh:NodeShape ;
    sh:targetClass ceds:RecordStatus ;
    sh:property [ sh:path ceds:RecordStatusCode ; sh:maxCount 1 ] .

cepi:DataCollectionShape a sh:NodeShape ;
    sh:targetClass ceds:DataCollection ;
    sh:property [ sh:path ceds:DataCollectionName ; sh:maxCount 1 ] .
`

const personContextJSON = `{
  "@context": {
    "@vocab": "https://ceds.ed.gov/terms#",
    "ceds": "https://ceds.ed.gov/terms#",
    "xsd": "http://www.w3.org/2001/XMLSchema#",
    "Person": {"@id": "ceds:Person"},
    "hasPersonName": {"@id": "ceds:hasPersonName"},
    "FirstName": {"@id": "ceds:FirstName"},
    "MiddleName": {"@id": "ceds:MiddleName"},
    "LastOrSurname": {"@id": "ceds:LastOrSurname"},
    "GenerationCodeOrSuffix": {"@id": "ceds:GenerationCodeOrSuffix"},
    "hasPersonBirth": {"@id": "ceds:hasPersonBirth"},
    "Birthdate": {"@id": "ceds:Birthdate", "@type": "xsd:date"},
    "hasPersonSexGender": {"@id": "ceds:hasPersonSexGender"},
    "hasSex": {"@id": "ceds:hasSex"},
    "hasPersonDemographicRace": {"@id": "ceds:hasPersonDemographicRace"},
    "hasRaceAndEthnicity": {"@id": "ceds:hasRaceAndEthnicity", "@container": "@set"},
    "hasPersonIdentification": {"@id": "ceds:hasPersonIdentification"},
    "PersonIdentifier": {"@id": "ceds:PersonIdentifier"},
    "IdentificationSystem": {"@id": "ceds:IdentificationSystem"},
    "PersonIdentifierType": {"@id": "ceds:PersonIdentifierType"},
    "hasRecordStatus": {"@id": "ceds:hasRecordStatus"},
    "RecordStatusCode": {"@id": "ceds:RecordStatusCode"},
    "hasDataCollection": {"@id": "ceds:hasDataCollection"},
    "DataCollectionName": {"@id": "ceds:DataCollectionName"}
  }
}`

const personMappingYAML = `shape: PersonShape
type: Person
context_url: https://cepi.example.org/context/person.jsonld
base_uri: "cepi:person/"
id_source: PersonIdentifiers
id_transform: first_pipe_split
properties:
  hasPersonName:
    type: PersonName
    fields:
      FirstName:
        source: FirstName
      MiddleName:
        source: MiddleName
        optional: true
      LastOrSurname:
        source: LastName
      GenerationCodeOrSuffix:
        source: GenerationCodeOrSuffix
        optional: true
  hasPersonBirth:
    type: PersonBirth
    fields:
      Birthdate:
        source: Birthdate
        datatype: xsd:date
        transform: date_format
  hasPersonSexGender:
    type: PersonSexGender
    fields:
      hasSex:
        source: Sex
        transform: sex_prefix
  hasPersonDemographicRace:
    type: PersonDemographicRace
    fields:
      hasRaceAndEthnicity:
        source: RaceEthnicity
        transform: race_prefix
        multi_value_split: ","
  hasPersonIdentification:
    type: PersonIdentification
    cardinality: multiple
    split_on: "|"
    fields:
      PersonIdentifier:
        source: PersonIdentifiers
      IdentificationSystem:
        source: IdentificationSystems
      PersonIdentifierType:
        source: PersonIdentifierTypes
        optional: true
  hasRecordStatus:
    include_record_status: true
  hasDataCollection:
    include_data_collection: true
record_status_defaults:
  type: RecordStatus
  fields:
    RecordStatusCode:
      value: Active
data_collection_defaults:
  type: DataCollection
  fields:
    DataCollectionName:
      value: SIS
`

func parsePersonTree(t *testing.T) map[string]*shacl.NodeShapeInfo {
	t.Helper()

	graph, err := shacl.ParseTurtle([]byte(personSHACL))
	require.NoError(t, err)

	ctx, err := ldcontext.Parse([]byte(personContextJSON))
	require.NoError(t, err)

	tree, err := shacl.BuildTree(graph, ctx)
	require.NoError(t, err)

	return tree
}

func TestParseTurtleBasics(t *testing.T) {
	t.Parallel()

	graph, err := shacl.ParseTurtle([]byte(personSHACL))
	require.NoError(t, err)
	assert.Greater(t, graph.Len(), 50)

	shapes := graph.SubjectsWithPredicateObject(
		"http://www.w3.org/1999/02/22-rdf-syntax-ns#type",
		shacl.IRI("http://www.w3.org/ns/shacl#NodeShape"))
	assert.Len(t, shapes, 8)
}

func TestBuildTree(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	person, ok := tree["PersonShape"]
	require.True(t, ok)

	assert.Equal(t, "https://ceds.ed.gov/terms#Person", person.TargetClass)
	assert.True(t, person.Closed)
	assert.Equal(t, []string{"https://ceds.ed.gov/terms#recordOrigin"}, person.IgnoredProperties)
	require.Len(t, person.Properties, 7)

	name := person.Properties[0]
	assert.Equal(t, "hasPersonName", name.LocalName)
	assert.True(t, name.Required())
	assert.False(t, name.Multiple())
	assert.Equal(t, "https://ceds.ed.gov/terms#PersonName", name.NodeClass)

	child, ok := person.ChildShapes["hasPersonName"]
	require.True(t, ok)
	assert.Equal(t, "PersonNameShape", child.Name)

	sexShape := person.ChildShapes["hasPersonSexGender"]
	require.NotNil(t, sexShape)
	require.Len(t, sexShape.Properties, 1)
	assert.Equal(t, []string{
		"https://ceds.ed.gov/terms#Sex_Female",
		"https://ceds.ed.gov/terms#Sex_Male",
	}, sexShape.Properties[0].AllowedValues)

	birthShape := person.ChildShapes["hasPersonBirth"]
	require.NotNil(t, birthShape)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#date", birthShape.Properties[0].Datatype)
}

func TestGenerateTemplate(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	ctx, err := ldcontext.Parse([]byte(personContextJSON))
	require.NoError(t, err)

	cfg, err := shacl.GenerateTemplate(tree, "PersonShape", ctx)
	require.NoError(t, err)

	assert.Equal(t, "PersonShape", cfg.Shape)
	assert.Equal(t, "Person", cfg.Type)

	slots := make([]string, 0, len(cfg.Properties))
	for _, p := range cfg.Properties {
		slots = append(slots, p.Slot)
	}

	assert.Equal(t, []string{
		"hasPersonName", "hasPersonBirth", "hasPersonSexGender",
		"hasPersonDemographicRace", "hasPersonIdentification",
	}, slots, "structural RecordStatus/DataCollection slots are not templated")

	namePlan, ok := cfg.Find("hasPersonName")
	require.True(t, ok)
	assert.Equal(t, mapping.CardinalitySingle, namePlan.Cardinality)

	first, ok := namePlan.Find("FirstName")
	require.True(t, ok)
	assert.False(t, first.Optional)
	assert.Empty(t, first.Source, "template fields start with an empty source")

	middle, ok := namePlan.Find("MiddleName")
	require.True(t, ok)
	assert.True(t, middle.Optional)

	identPlan, ok := cfg.Find("hasPersonIdentification")
	require.True(t, ok)
	assert.Equal(t, mapping.CardinalityMultiple, identPlan.Cardinality)

	birthPlan, ok := cfg.Find("hasPersonBirth")
	require.True(t, ok)

	birthdate, ok := birthPlan.Find("Birthdate")
	require.True(t, ok)
	assert.Equal(t, mapping.DatatypeDate, birthdate.Datatype)
}

func TestGenerateTemplateUnknownShape(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	ctx, err := ldcontext.Parse([]byte(personContextJSON))
	require.NoError(t, err)

	_, err = shacl.GenerateTemplate(tree, "NoSuchShape", ctx)
	require.ErrorIs(t, err, shacl.ErrUnknownShape)
}

func TestValidateMappingConforms(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	cfg, err := mapping.ParseConfig([]byte(personMappingYAML))
	require.NoError(t, err)

	report, err := shacl.ValidateMapping(cfg, tree)
	require.NoError(t, err)
	assert.True(t, report.Conforms(), "issues: %v", report.Issues)
}

func TestValidateMappingFindings(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	cfg, err := mapping.ParseConfig([]byte(personMappingYAML))
	require.NoError(t, err)

	namePlan, _ := cfg.Find("hasPersonName")

	// Drop the required LastOrSurname rule and smuggle in an unknown target.
	kept := namePlan.Fields[:0:0]

	for _, f := range namePlan.Fields {
		if f.Target != "LastOrSurname" {
			kept = append(kept, f)
		}
	}

	kept = append(kept, mapping.FieldEntry{
		Target: "Nickname",
		Rule:   &mapping.FieldRule{Target: "Nickname", Source: "Nickname"},
	})
	namePlan.Fields = kept

	birthPlan, _ := cfg.Find("hasPersonBirth")
	birthRule, _ := birthPlan.Find("Birthdate")
	birthRule.Datatype = mapping.DatatypeString

	report, err := shacl.ValidateMapping(cfg, tree)
	require.NoError(t, err)
	assert.False(t, report.Conforms())

	var errorPaths, warningPaths []string

	for _, issue := range report.Errors() {
		errorPaths = append(errorPaths, issue.Path)
	}

	for _, issue := range report.Warnings() {
		warningPaths = append(warningPaths, issue.Path)
	}

	assert.Contains(t, errorPaths, "hasPersonName.LastOrSurname")
	assert.Contains(t, errorPaths, "hasPersonName.Nickname")
	assert.Contains(t, warningPaths, "hasPersonBirth.Birthdate", "datatype mismatch is a warning")
}

func TestValidateMappingUnknownShape(t *testing.T) {
	t.Parallel()

	tree := parsePersonTree(t)

	cfg := &mapping.Config{Shape: "NoSuchShape"}

	_, err := shacl.ValidateMapping(cfg, tree)
	require.ErrorIs(t, err, shacl.ErrUnknownShape)
}
