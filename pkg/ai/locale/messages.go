// Package locale holds the canned replies the assistant sends without asking the model.
package locale

import (
	"fmt"
	"strings"
)

const (
	Spanish    = "es"
	English    = "en"
	Indonesian = "id"

	Default = English
)

// Supported lists languages in fast-path evaluation order
var Supported = []string{Spanish, English, Indonesian}

// Messages is one language's catalog
type Messages struct {
	Greeting      string
	Help          string
	Thanks        string
	Farewell      string
	EmptyDocument string
	Cancelled     string
	Degraded      string
	SafeMode      string
	Timeout       string
	Fallback      string
	NoSafeEdits   string

	ClarifyModification string
	ClarifyTone         string
	ClarifyTarget       string
	ClarifyMode         string
	ConfirmRewrite      string
	ConfirmApply        string
	ConfirmCancel       string

	Modifications map[string]string
	Tones         map[string]string
	Modes         map[string]string
	Paragraph     string // format with 1-based position and preview
}

var catalog = map[string]Messages{
	Spanish: {
		Greeting:      "¡Hola! Soy tu asistente de edición. Puedo responder preguntas sobre tu documento, encontrar fragmentos, corregir párrafos o reescribirlo.",
		Help:          "Puedes pedirme que explique el texto, que resalte errores, que corrija o mejore párrafos concretos, o que cambie el tono del documento.",
		Thanks:        "¡De nada! Dime si necesitas algo más.",
		Farewell:      "¡Hasta luego! Tus cambios siguen en el documento.",
		EmptyDocument: "El documento está vacío. Escribe o pega algo de texto y te ayudo a trabajarlo.",
		Cancelled:     "De acuerdo, lo dejo como está.",
		Degraded:      "Lo siento, algo salió mal al procesar tu petición. Inténtalo de nuevo en un momento.",
		SafeMode:      "El asistente está saturado ahora mismo. Vuelve a intentarlo en un minuto.",
		Timeout:       "La petición tardó demasiado. Prueba con una instrucción más concreta o inténtalo de nuevo.",
		Fallback:      "No estoy seguro de qué cambio quieres. ¿Puedes darme más detalles?",
		NoSafeEdits:   "No encontré cambios seguros que proponer para esa instrucción.",

		ClarifyModification: "¿Qué quieres que haga con el texto?",
		ClarifyTone:         "¿Qué tono prefieres?",
		ClarifyTarget:       "¿A qué párrafo te refieres?",
		ClarifyMode:         "¿Qué quieres que haga?",
		ConfirmRewrite:      "Esto cambiará buena parte del documento. ¿Aplico los cambios?",
		ConfirmApply:        "Sí, aplicar",
		ConfirmCancel:       "No, cancelar",

		Modifications: map[string]string{
			"correction":   "Corregir errores",
			"improvement":  "Mejorar la redacción",
			"tone_change":  "Cambiar el tono",
			"expansion":    "Ampliar",
			"condensation": "Resumir",
			"restructure":  "Reorganizar",
		},
		Tones: map[string]string{
			"formal":   "Formal",
			"informal": "Informal",
			"neutral":  "Neutro",
		},
		Modes: map[string]string{
			"informational":    "Responder una pregunta",
			"locate_highlight": "Resaltar fragmentos",
			"targeted_update":  "Editar párrafos concretos",
			"full_rewrite":     "Reescribir el documento",
		},
		Paragraph: "Párrafo %d: %s",
	},
	English: {
		Greeting:      "Hi! I'm your editing assistant. I can answer questions about your document, find passages, fix paragraphs or rewrite it.",
		Help:          "You can ask me to explain the text, highlight mistakes, fix or improve specific paragraphs, or change the tone of the document.",
		Thanks:        "You're welcome! Let me know if you need anything else.",
		Farewell:      "Bye! Your changes are still in the document.",
		EmptyDocument: "The document is empty. Write or paste some text and I'll help you work on it.",
		Cancelled:     "Okay, I'll leave it as it is.",
		Degraded:      "Sorry, something went wrong while processing your request. Please try again in a moment.",
		SafeMode:      "The assistant is overloaded right now. Please try again in a minute.",
		Timeout:       "That took too long. Try a more specific instruction or try again.",
		Fallback:      "I'm not sure what change you want. Could you give me more detail?",
		NoSafeEdits:   "I couldn't find safe changes to propose for that instruction.",

		ClarifyModification: "What would you like me to do with the text?",
		ClarifyTone:         "Which tone do you prefer?",
		ClarifyTarget:       "Which paragraph do you mean?",
		ClarifyMode:         "What would you like me to do?",
		ConfirmRewrite:      "This will change a large part of the document. Should I apply it?",
		ConfirmApply:        "Yes, apply",
		ConfirmCancel:       "No, cancel",

		Modifications: map[string]string{
			"correction":   "Fix mistakes",
			"improvement":  "Improve the wording",
			"tone_change":  "Change the tone",
			"expansion":    "Expand",
			"condensation": "Shorten",
			"restructure":  "Reorganize",
		},
		Tones: map[string]string{
			"formal":   "Formal",
			"informal": "Informal",
			"neutral":  "Neutral",
		},
		Modes: map[string]string{
			"informational":    "Answer a question",
			"locate_highlight": "Highlight passages",
			"targeted_update":  "Edit specific paragraphs",
			"full_rewrite":     "Rewrite the document",
		},
		Paragraph: "Paragraph %d: %s",
	},
	Indonesian: {
		Greeting:      "Halo! Saya asisten penyuntingan Anda. Saya bisa menjawab pertanyaan tentang dokumen, mencari bagian teks, memperbaiki paragraf, atau menulis ulang.",
		Help:          "Anda bisa meminta saya menjelaskan teks, menandai kesalahan, memperbaiki paragraf tertentu, atau mengubah gaya bahasa dokumen.",
		Thanks:        "Sama-sama! Kabari saya kalau butuh bantuan lain.",
		Farewell:      "Sampai jumpa! Perubahan Anda tetap ada di dokumen.",
		EmptyDocument: "Dokumen masih kosong. Tulis atau tempel teks dulu, nanti saya bantu.",
		Cancelled:     "Baik, saya biarkan seperti semula.",
		Degraded:      "Maaf, terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi sebentar lagi.",
		SafeMode:      "Asisten sedang sibuk. Silakan coba lagi dalam satu menit.",
		Timeout:       "Permintaan terlalu lama. Coba instruksi yang lebih spesifik atau ulangi lagi.",
		Fallback:      "Saya belum yakin perubahan apa yang Anda mau. Bisa jelaskan lebih detail?",
		NoSafeEdits:   "Saya tidak menemukan perubahan aman untuk instruksi itu.",

		ClarifyModification: "Apa yang ingin Anda lakukan dengan teks ini?",
		ClarifyTone:         "Gaya bahasa apa yang Anda inginkan?",
		ClarifyTarget:       "Paragraf mana yang Anda maksud?",
		ClarifyMode:         "Apa yang ingin Anda lakukan?",
		ConfirmRewrite:      "Ini akan mengubah sebagian besar dokumen. Terapkan perubahan?",
		ConfirmApply:        "Ya, terapkan",
		ConfirmCancel:       "Tidak, batalkan",

		Modifications: map[string]string{
			"correction":   "Perbaiki kesalahan",
			"improvement":  "Perbaiki susunan kalimat",
			"tone_change":  "Ubah gaya bahasa",
			"expansion":    "Perluas",
			"condensation": "Ringkas",
			"restructure":  "Susun ulang",
		},
		Tones: map[string]string{
			"formal":   "Formal",
			"informal": "Santai",
			"neutral":  "Netral",
		},
		Modes: map[string]string{
			"informational":    "Jawab pertanyaan",
			"locate_highlight": "Tandai bagian teks",
			"targeted_update":  "Sunting paragraf tertentu",
			"full_rewrite":     "Tulis ulang dokumen",
		},
		Paragraph: "Paragraf %d: %s",
	},
}

// Normalize maps a language tag such as "es-MX" to a supported code
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := catalog[lang]; ok {
		return lang
	}
	return Default
}

// For returns the catalog for lang, falling back to English
func For(lang string) Messages {
	return catalog[Normalize(lang)]
}

// ParagraphLabel renders a paragraph option with a short preview
func (m Messages) ParagraphLabel(id int, text string) string {
	return fmt.Sprintf(m.Paragraph, id+1, Preview(text, 60))
}

// Preview shortens text to at most n runes
func Preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
