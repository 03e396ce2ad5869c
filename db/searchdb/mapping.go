package searchdb

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/meghashyamc/searchsync/registry"
)

func createIndexMapping(reg *registry.Registry) *mapping.IndexMappingImpl {

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	docMapping := bleve.NewDocumentStaticMapping()

	// Type and id markers - not analyzed (exact match)
	docMapping.AddFieldMappingsAt(FieldModel, keywordField(false))
	docMapping.AddFieldMappingsAt(FieldModelID, keywordField(false))

	for _, code := range reg.TermCodes() {
		docMapping.AddFieldMappingsAt(code, textField(standard.Name))
	}

	// Free text, one array element per declared text field so phrases never cross field boundaries
	docMapping.AddFieldMappingsAt(FieldText, textField(standard.Name))
	docMapping.AddFieldMappingsAt(FieldStemmed, textField(en.AnalyzerName))

	for _, value := range reg.Values() {
		var valueMapping *mapping.FieldMapping
		switch value.Type {
		case registry.ValueTypeDate:
			valueMapping = bleve.NewDateTimeFieldMapping()
		case registry.ValueTypeNumber:
			valueMapping = bleve.NewNumericFieldMapping()
		default:
			valueMapping = keywordField(true)
		}
		valueMapping.Store = true
		valueMapping.DocValues = true
		valueMapping.IncludeInAll = false
		docMapping.AddFieldMappingsAt(ValueField(value.Slot), valueMapping)
	}

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

func keywordField(store bool) *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = keyword.Name
	fieldMapping.Store = store
	fieldMapping.IncludeInAll = false
	fieldMapping.IncludeTermVectors = false

	return fieldMapping
}

func textField(analyzer string) *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = analyzer
	fieldMapping.Store = false // records are hydrated from the record store
	fieldMapping.Index = true
	fieldMapping.IncludeTermVectors = true // positions for phrase queries
	fieldMapping.IncludeInAll = false

	return fieldMapping
}
