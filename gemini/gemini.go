// Package gemini implements [omni.Classifier] with the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK and asks the model for a JSON
// object constrained by a response schema. When the call or the decode
// fails, a fallback classifier answers instead.
package gemini

import "google.golang.org/genai"

const defaultModel = "gemini-2.5-flash"

const systemPrompt = `You decide which media files a chat assistant must produce for a user message.
Answer with a JSON object with boolean fields "image", "audio" and "doc".
Set a field only when the user explicitly asks for that artifact to be created:
an image or picture, spoken audio, or a downloadable document.
Questions about images, audio or documents do not count.`

// responseSchema constrains the model output to the expected media flags.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"image": {Type: genai.TypeBoolean, Description: "The user asks for an image to be generated."},
		"audio": {Type: genai.TypeBoolean, Description: "The user asks for speech or audio to be generated."},
		"doc":   {Type: genai.TypeBoolean, Description: "The user asks for a document to be generated."},
	},
	Required: []string{"image", "audio", "doc"},
}

// verdict is the decoded model answer.
type verdict struct {
	Image bool `json:"image"`
	Audio bool `json:"audio"`
	Doc   bool `json:"doc"`
}
