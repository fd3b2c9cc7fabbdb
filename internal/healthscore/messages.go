package healthscore

import (
	"strings"

	"golang.org/x/text/language"
)

// Feedback codes.
const (
	CodeOverallPoor       = "overall_poor"
	CodeOverallAverage    = "overall_average"
	CodeOverallGood       = "overall_good"
	CodeOverallExcellent  = "overall_excellent"
	CodeCalorieSurplus    = "calorie_surplus"
	CodeLightMeal         = "light_meal"
	CodeLowProtein        = "low_protein"
	CodeLowFiber          = "low_fiber"
	CodeHighSaturatedFat  = "high_saturated_fat"
	CodeHighSugar         = "high_sugar"
	CodeHighEnergyDensity = "high_energy_density"
	CodeGoodProtein       = "good_protein"
	CodeGoodFiber         = "good_fiber"
	CodeLowSaturatedFat   = "low_saturated_fat"
	CodeLowSugar          = "low_sugar"
	CodeLowEnergyDensity  = "low_energy_density"
	CodeInsufficientData  = "insufficient_data"
)

var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.Italian,
	language.German,
	language.French,
}

var matcher = language.NewMatcher(supported)

var messages = map[string]map[string]string{
	"en": {
		CodeOverallPoor:       "This meal is unbalanced overall.",
		CodeOverallAverage:    "This meal is fairly balanced but has room for improvement.",
		CodeOverallGood:       "This is a well balanced meal.",
		CodeOverallExcellent:  "Excellent choice, this meal is very well balanced.",
		CodeCalorieSurplus:    "This meal is high in calories; consider a smaller portion.",
		CodeLightMeal:         "This looks like a snack rather than a full meal.",
		CodeLowProtein:        "Low in protein for its calories.",
		CodeLowFiber:          "Low in fiber; add vegetables, legumes or whole grains.",
		CodeHighSaturatedFat:  "A large share of the fat is saturated.",
		CodeHighSugar:         "A large share of the calories comes from sugar.",
		CodeHighEnergyDensity: "Very calorie dense for its weight.",
		CodeGoodProtein:       "Good protein content.",
		CodeGoodFiber:         "Good source of fiber.",
		CodeLowSaturatedFat:   "Low in saturated fat.",
		CodeLowSugar:          "Low in sugar.",
		CodeLowEnergyDensity:  "Light and filling for its calories.",
		CodeInsufficientData:  "Not enough nutrition data to score this meal.",
	},
	"es": {
		CodeOverallPoor:       "Esta comida está poco equilibrada.",
		CodeOverallAverage:    "Esta comida está bastante equilibrada, pero se puede mejorar.",
		CodeOverallGood:       "Es una comida bien equilibrada.",
		CodeOverallExcellent:  "Excelente elección, esta comida está muy equilibrada.",
		CodeCalorieSurplus:    "Esta comida es muy calórica; considera una porción más pequeña.",
		CodeLightMeal:         "Parece más un tentempié que una comida completa.",
		CodeLowProtein:        "Baja en proteínas para sus calorías.",
		CodeLowFiber:          "Baja en fibra; añade verduras, legumbres o cereales integrales.",
		CodeHighSaturatedFat:  "Gran parte de la grasa es saturada.",
		CodeHighSugar:         "Gran parte de las calorías proviene del azúcar.",
		CodeHighEnergyDensity: "Muy densa en calorías para su peso.",
		CodeGoodProtein:       "Buen aporte de proteínas.",
		CodeGoodFiber:         "Buena fuente de fibra.",
		CodeLowSaturatedFat:   "Baja en grasas saturadas.",
		CodeLowSugar:          "Baja en azúcar.",
		CodeLowEnergyDensity:  "Ligera y saciante para sus calorías.",
		CodeInsufficientData:  "No hay datos nutricionales suficientes para puntuar esta comida.",
	},
	"it": {
		CodeOverallPoor:       "Questo pasto è poco bilanciato.",
		CodeOverallAverage:    "Questo pasto è abbastanza bilanciato, ma si può migliorare.",
		CodeOverallGood:       "È un pasto ben bilanciato.",
		CodeOverallExcellent:  "Ottima scelta, questo pasto è molto bilanciato.",
		CodeCalorieSurplus:    "Questo pasto è molto calorico; valuta una porzione più piccola.",
		CodeLightMeal:         "Sembra più uno spuntino che un pasto completo.",
		CodeLowProtein:        "Povero di proteine rispetto alle calorie.",
		CodeLowFiber:          "Povero di fibre; aggiungi verdure, legumi o cereali integrali.",
		CodeHighSaturatedFat:  "Gran parte dei grassi è saturata.",
		CodeHighSugar:         "Gran parte delle calorie proviene dagli zuccheri.",
		CodeHighEnergyDensity: "Molto calorico rispetto al peso.",
		CodeGoodProtein:       "Buon apporto di proteine.",
		CodeGoodFiber:         "Buona fonte di fibre.",
		CodeLowSaturatedFat:   "Povero di grassi saturi.",
		CodeLowSugar:          "Povero di zuccheri.",
		CodeLowEnergyDensity:  "Leggero e saziante per le sue calorie.",
		CodeInsufficientData:  "Dati nutrizionali insufficienti per valutare questo pasto.",
	},
	"de": {
		CodeOverallPoor:       "Diese Mahlzeit ist insgesamt unausgewogen.",
		CodeOverallAverage:    "Diese Mahlzeit ist einigermaßen ausgewogen, aber verbesserungsfähig.",
		CodeOverallGood:       "Das ist eine ausgewogene Mahlzeit.",
		CodeOverallExcellent:  "Ausgezeichnete Wahl, diese Mahlzeit ist sehr ausgewogen.",
		CodeCalorieSurplus:    "Diese Mahlzeit ist sehr kalorienreich; wähle eine kleinere Portion.",
		CodeLightMeal:         "Das wirkt eher wie ein Snack als eine vollständige Mahlzeit.",
		CodeLowProtein:        "Wenig Eiweiß im Verhältnis zu den Kalorien.",
		CodeLowFiber:          "Wenig Ballaststoffe; ergänze Gemüse, Hülsenfrüchte oder Vollkorn.",
		CodeHighSaturatedFat:  "Ein großer Teil des Fetts ist gesättigt.",
		CodeHighSugar:         "Ein großer Teil der Kalorien stammt aus Zucker.",
		CodeHighEnergyDensity: "Sehr kaloriendicht für das Gewicht.",
		CodeGoodProtein:       "Guter Eiweißgehalt.",
		CodeGoodFiber:         "Gute Ballaststoffquelle.",
		CodeLowSaturatedFat:   "Wenig gesättigte Fettsäuren.",
		CodeLowSugar:          "Wenig Zucker.",
		CodeLowEnergyDensity:  "Leicht und sättigend für die Kalorien.",
		CodeInsufficientData:  "Nicht genug Nährwertdaten, um diese Mahlzeit zu bewerten.",
	},
	"fr": {
		CodeOverallPoor:       "Ce repas est globalement déséquilibré.",
		CodeOverallAverage:    "Ce repas est assez équilibré mais peut être amélioré.",
		CodeOverallGood:       "C'est un repas bien équilibré.",
		CodeOverallExcellent:  "Excellent choix, ce repas est très équilibré.",
		CodeCalorieSurplus:    "Ce repas est très calorique ; pensez à une portion plus petite.",
		CodeLightMeal:         "Cela ressemble plus à un en-cas qu'à un repas complet.",
		CodeLowProtein:        "Pauvre en protéines pour ses calories.",
		CodeLowFiber:          "Pauvre en fibres ; ajoutez des légumes, des légumineuses ou des céréales complètes.",
		CodeHighSaturatedFat:  "Une grande partie des graisses est saturée.",
		CodeHighSugar:         "Une grande partie des calories provient du sucre.",
		CodeHighEnergyDensity: "Très dense en calories pour son poids.",
		CodeGoodProtein:       "Bon apport en protéines.",
		CodeGoodFiber:         "Bonne source de fibres.",
		CodeLowSaturatedFat:   "Pauvre en graisses saturées.",
		CodeLowSugar:          "Pauvre en sucre.",
		CodeLowEnergyDensity:  "Léger et rassasiant pour ses calories.",
		CodeInsufficientData:  "Pas assez de données nutritionnelles pour évaluer ce repas.",
	},
}

// Language returns the supported base language closest to locale, or "en".
func Language(locale string) string {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return "en"
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Message returns the localized text for code, falling back to English.
func Message(locale, code string) string {
	if m, ok := messages[Language(locale)][code]; ok {
		return m
	}
	return messages["en"][code]
}
