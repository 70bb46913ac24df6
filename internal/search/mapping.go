package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for note documents.
// Question and answer get English stemming and term vectors for
// highlighting; owner, book, and tag fields are exact-match keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	questionFieldMapping := bleve.NewTextFieldMapping()
	questionFieldMapping.Analyzer = en.AnalyzerName
	questionFieldMapping.Store = true
	questionFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("question", questionFieldMapping)

	answerFieldMapping := bleve.NewTextFieldMapping()
	answerFieldMapping.Analyzer = en.AnalyzerName
	answerFieldMapping.Store = true
	answerFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("answer", answerFieldMapping)

	bookTitleFieldMapping := bleve.NewTextFieldMapping()
	bookTitleFieldMapping.Analyzer = en.AnalyzerName
	bookTitleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("book_title", bookTitleFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	topicFieldMapping := bleve.NewTextFieldMapping()
	topicFieldMapping.Analyzer = en.AnalyzerName
	topicFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("topic", topicFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	ownerFieldMapping := bleve.NewTextFieldMapping()
	ownerFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("owner_id", ownerFieldMapping)

	bookIDFieldMapping := bleve.NewTextFieldMapping()
	bookIDFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("book_id", bookIDFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
