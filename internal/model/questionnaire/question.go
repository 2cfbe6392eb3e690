package questionnaire

// Question is one step of the persona questionnaire. The position of a
// question in the sequence decides its category.
type Question struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// Category groups questions by their position in the sequence.
type Category string

const (
	CategoryPersonality Category = "personality"
	CategoryExpertise   Category = "expertise"
	CategoryBoundaries  Category = "boundaries"
	CategorySamples     Category = "samples"
)

// Section boundaries: [0,5) personality, [5,9) expertise, [9,12) boundaries,
// the rest sample dialogue.
const (
	PersonalityEnd = 5
	ExpertiseEnd   = 9
	BoundariesEnd  = 12
)

// CategoryOf returns the category of the question at the zero-based index.
func CategoryOf(index int) Category {
	switch {
	case index < PersonalityEnd:
		return CategoryPersonality
	case index < ExpertiseEnd:
		return CategoryExpertise
	case index < BoundariesEnd:
		return CategoryBoundaries
	default:
		return CategorySamples
	}
}

// Label returns the display label of the category.
func (c Category) Label() string {
	switch c {
	case CategoryPersonality:
		return "個性と話し方"
	case CategoryExpertise:
		return "専門知識と得意分野"
	case CategoryBoundaries:
		return "応答の境界とガイドライン"
	default:
		return "会話サンプル"
	}
}

// Sections splits questions at the fixed boundaries, clamping when fewer
// questions are supplied.
func Sections(questions []Question) (personality, expertise, boundaries, samples []Question) {
	cut := func(from, to int) []Question {
		if from > len(questions) {
			from = len(questions)
		}
		if to < 0 || to > len(questions) {
			to = len(questions)
		}
		return questions[from:to]
	}
	return cut(0, PersonalityEnd), cut(PersonalityEnd, ExpertiseEnd), cut(ExpertiseEnd, BoundariesEnd), cut(BoundariesEnd, -1)
}

// Clone returns an independent copy of the questions.
func Clone(questions []Question) []Question {
	return append([]Question(nil), questions...)
}

// Seed returns the fixed questionnaire with empty answers.
func Seed() []Question {
	return []Question{
		{ID: 1, Text: "自己紹介をしてください。"},
		{ID: 2, Text: "あなたがよく使うフレーズや口癖は何ですか？"},
		{ID: 3, Text: "友人や同僚からどんな性格だと言われますか？"},
		{ID: 4, Text: "普段どんなトーンや言葉遣いで話しますか？（例：丁寧、カジュアル、ユーモラスなど）"},
		{ID: 5, Text: "好きな話題や関心のある分野は何ですか？"},

		{ID: 6, Text: "あなたの専門分野や得意なことは何ですか？"},
		{ID: 7, Text: "これまでに執筆した記事やプレゼン資料などがあれば教えてください。"},
		{ID: 8, Text: "よく受ける質問や、他人に説明することが多い内容は何ですか？"},
		{ID: 9, Text: "どのようなテーマでAIクローンを活用したいですか？"},

		{ID: 10, Text: "回答したくない話題や避けてほしい質問はありますか？"},
		{ID: 11, Text: "AIクローンにはどのようなガイドラインやルールを設けたいですか？"},
		{ID: 12, Text: "どのような状況でも一貫して守ってほしい態度や価値観はありますか？"},

		{ID: 13, Text: "典型的な一日の流れや、よくある相談内容を教えてください。"},
		{ID: 14, Text: "「今日は長い一日だった」と言われたとき、どのように返答しますか？"},
		{ID: 15, Text: "新しいことに挑戦する際の考え方やアドバイスを教えてください。"},
	}
}
