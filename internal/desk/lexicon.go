package desk

import "github.com/wakala/exchangedesk/internal/domain"

// Lexicon holds the phrases sent to correspondents in one locale.
type Lexicon struct {
	Greet            string
	AskAddress       string
	AskAmount        string
	ConfirmUSD       string
	ConfirmUSDRetry  string
	DuplicateReceipt string
	AfterReceipt1    string
	AfterReceipt2    string
	CommissionLabel  string
	SumLine          string // %d is the AMD total
	ReceiptLine      string
	AppsLine         string
	TerminalWarning  string
}

var lexicons = map[domain.Locale]Lexicon{
	domain.LocaleAM: {
		Greet:            "Ողջույն 👋",
		AskAddress:       "Ի՞նչ գործարք է հարկավոր 🌟",
		AskAmount:        "💵 Որքա՞ն գումար եք ցանկանում փոխանակել",
		ConfirmUSD:       "Սա դոլա՞ր է",
		ConfirmUSDRetry:  "Սա դոլա՞ր է",
		DuplicateReceipt: "Նույն կտրոնն եք ուղարկել 🧾",
		AfterReceipt1:    "Հիմա ստուգենք 👾",
		AfterReceipt2:    "Ստացանք, հիմա կփոխանցենք ու կտրոնը կտրամադրենք 👾",
		CommissionLabel:  "փոխանցման վճար",
		SumLine:          "%dդր⤵️",
		ReceiptLine:      "📸 Կտրոնն անմիջապես ուղարկեք 🧾",
		AppsLine:         "📲 Փոխանցումները այս պահին ստանում ենք միայն հեռախոսի telcell-easy ծրագրերից",
		TerminalWarning:  "‼️ Տերմինալով մեզ փոխանցում տվյալ պահին չեք կարող կատարել",
	},
	domain.LocaleRU: {
		Greet:            "Привет 👋 Какая операция нужна?",
		AskAddress:       "Какая операция нужна? 🌟",
		AskAmount:        "💵 На какую сумму хотите пополнить?",
		ConfirmUSD:       "Уточните, это USD (да/нет)?",
		ConfirmUSDRetry:  "Уточните, это USD?",
		DuplicateReceipt: "Вы прислали тот же чек 🧾",
		AfterReceipt1:    "Секунду, проверяю…",
		AfterReceipt2:    "Получили, сейчас переведём и предоставим чек.",
		CommissionLabel:  "комиссия",
		SumLine:          "%d AMD ⤵️",
		ReceiptLine:      "📸 После оплаты отправьте фото/скрин чека 🧾",
		AppsLine:         "📲 Приём переводов сейчас только из приложений telcell-easy на телефоне",
		TerminalWarning:  "‼️ Через терминал перевести на нас сейчас нельзя",
	},
}

// lexicon returns the phrases for l, falling back to Armenian.
func lexicon(l domain.Locale) Lexicon {
	if lx, ok := lexicons[l]; ok {
		return lx
	}
	return lexicons[domain.LocaleAM]
}
