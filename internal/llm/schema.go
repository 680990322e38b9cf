// SPDX-License-Identifier: Apache-2.0

package llm

import "google.golang.org/genai"

// orderResponseSchema constrains every model reply to structured JSON:
// the Greek transcription of the audio, the conversational reply, and the
// full cart state after the interaction.
func orderResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transcription": {
				Type:        genai.TypeString,
				Description: "The exact transcription of the user's speech/audio input in Greek",
			},
			"ai_response": {
				Type:        genai.TypeString,
				Description: "The conversational response to the user in Greek",
			},
			"order": {
				Type:        genai.TypeArray,
				Description: "The current cart/order items. Include ALL items that should be in the cart after this interaction.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id": {
							Type:        genai.TypeString,
							Description: "The product ID - MUST be copied exactly from the first column of the catalog CSV.",
						},
						"quantity": {
							Type:        genai.TypeInteger,
							Description: "The quantity in the same unit the customer used",
						},
						"unit": {
							Type:        genai.TypeString,
							Description: "The unit type: 'KOYTA' for boxes/packages or 'ΤΕΜΑΧΙΟ' for individual pieces",
							Enum:        []string{"KOYTA", "ΤΕΜΑΧΙΟ", "CAN", "ΠΕΝΤΑΔΑ", "ΚΑΣΕΤΙΝΑ"},
						},
					},
					Required: []string{"id", "quantity", "unit"},
				},
			},
		},
		Required: []string{"transcription", "ai_response", "order"},
	}
}
