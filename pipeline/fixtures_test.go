package pipeline_test

// Shared Person fixtures for the validator tests.

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
