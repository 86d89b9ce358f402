package models

// DocumentType values are the identifiers the generation backend expects.
type DocumentType string

const (
	DocComposition       DocumentType = "Сочинение"
	DocSummary           DocumentType = "Изложение"
	DocAbstract          DocumentType = "Реферат"
	DocReport            DocumentType = "Доклад"
	DocEssay             DocumentType = "Эссе"
	DocReview            DocumentType = "Отзыв"
	DocCharacterProfile  DocumentType = "Характеристика героя"
	DocTextAnalysis      DocumentType = "Анализ текста"
	DocScript            DocumentType = "Анализ"
	DocTutor             DocumentType = "Репетитор"
	DocDoHomework        DocumentType = "Сделать ДЗ"
	DocSolveControlWork  DocumentType = "Решать КР, ПР"
	DocScientific        DocumentType = "Изыскание"
	DocThesis            DocumentType = "Дипломная работа"
	DocTechImprovement   DocumentType = "Улучшение технологии"
	DocBookWriting       DocumentType = "Написать книгу"
	DocAstrology         DocumentType = "Астрология"
	DocPersonalAnalysis  DocumentType = "Личностный анализ"
	DocDocumentAnalysis  DocumentType = "Доктор"
	DocConsultation      DocumentType = "Консультация"
	DocAcademicArticle   DocumentType = "Научная статья"
	DocGrantProposal     DocumentType = "Грант"
	DocForecasting       DocumentType = "Прогнозирование"
	DocSwotAnalysis      DocumentType = "SWOT-анализ"
	DocCommercial        DocumentType = "Коммерческое"
	DocBusinessPlan      DocumentType = "Бизнес-план"
	DocMarketingCopy     DocumentType = "Маркетинг"
	DocTextRewriting     DocumentType = "Переработка текста"
	DocAudioScript       DocumentType = "Аудио скрипт"
	DocCodeGeneration    DocumentType = "Генерация кода"
	DocAnalysisShort     DocumentType = "Кратко по сути"
	DocAnalysisVerify    DocumentType = "Достоверность"
)

// StandardDocTypes are generated by a single generateText call.
var StandardDocTypes = []DocumentType{
	DocComposition, DocSummary, DocAbstract, DocReport, DocEssay,
	DocReview, DocCharacterProfile, DocTextAnalysis,
}

func IsStandardDocType(d DocumentType) bool {
	for _, s := range StandardDocTypes {
		if s == d {
			return true
		}
	}
	return false
}

type Assistant string

const (
	Mirra Assistant = "mirra"
	Dary  Assistant = "dary"
)

func (a Assistant) Valid() bool { return a == Mirra || a == Dary }

// AssistantPurchaseGenerations is granted to the buyer of an assistant and
// paid to their referrer.
const AssistantPurchaseGenerations = 250

type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Generations int    `json:"generations"`
	Price       string `json:"price"`
}

var Packages = []Package{
	{ID: "starter", Name: "Starter", Generations: 10, Price: "99 ₽"},
	{ID: "advanced", Name: "Advanced", Generations: 200, Price: "1490 ₽"},
	{ID: "expert", Name: "Expert", Generations: 1000, Price: "4990 ₽"},
}

func FindPackage(id string) (Package, bool) {
	for _, p := range Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
