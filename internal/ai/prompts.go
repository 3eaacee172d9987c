package ai

import (
	"fmt"
	"strings"
)

const (
	directorPreamble = "You are a horror film director. You describe single, filmable moments."
	artistPreamble   = "You are a professional concept artist for horror films."
	narratorPreamble = "You write voice over scripts for a horror storytelling channel."

	// DetailSuffix добавляется к каждому промпту изображения.
	DetailSuffix = ", highly detailed, cinematic lighting, atmospheric, 8k resolution"

	FallbackDescription = "A dimly lit room with shadows stretching across the walls. A figure stands motionless, their face obscured by darkness as moonlight filters through a nearby window."

	ChannelName = "The Withering Club"
)

var styleGuidance = map[string]string{
	"realistic": "photorealistic, intricate details, natural lighting, cinematic photography, 8k resolution, dramatic composition",
	"cinematic": "cinematic composition, dramatic lighting, film grain, anamorphic lens effect, professional cinematography, color grading, depth of field",
	"artistic":  "digital art, stylized, vibrant colors, dramatic composition, concept art, trending on artstation",
	"neutral":   "balanced composition, masterful photography, perfect exposure, selective focus, attention-grabbing depth of field, highly atmospheric",
}

// Styles перечисляет допустимые визуальные стили.
func Styles() []string {
	return []string{"realistic", "cinematic", "artistic", "neutral"}
}

// StyleGuidance возвращает ключевые слова стиля; для неизвестных стилей
// берётся набор cinematic.
func StyleGuidance(style string) string {
	if g, ok := styleGuidance[strings.ToLower(style)]; ok {
		return g
	}
	return styleGuidance["cinematic"]
}

func enhancePrompt(story string) string {
	return fmt.Sprintf(`Transform this story into a voice over script with the following structure:

1. Start with a powerful hook about the story's theme (2-3 sentences).
2. Include this intro: "Welcome to %[1]s, where we explore the darkest corners of human experience. Before we begin tonight's story, remember that the shadows you see might be watching back. Now, dim the lights and prepare yourself for tonight's tale..."
3. Tell the story with a clear beginning, middle and end: clear narrative flow, building tension, natural dialogue, atmospheric descriptions.
4. End with: "That concludes tonight's tale from %[1]s. If this story kept you up at night, remember to like, share, and subscribe. Until next time, remember... the best stories are the ones that follow you home. Sleep well, if you can."

Original Story: %[2]s

Return ONLY the complete script text with no additional formatting, explanations, or markdown.`, ChannelName, story)
}

func scenePrompt(narration string) string {
	return fmt.Sprintf(`Create a vivid, cinematic scene description for this segment of narration.

NARRATION: "%s"

Describe the exact visual scenario that would be filmed, the characters' positions, expressions and actions, the setting with lighting, weather and environment, the camera angle and framing, and the color palette.

Describe a SINGLE, SPECIFIC moment that could be photographed. Focus on what the viewer sees. Write in present tense as if describing a film frame.

Return ONLY the scene description, no explanations or formatting.`, narration)
}

func imagePrompt(description, style string) string {
	return fmt.Sprintf(`Create a detailed image prompt for a diffusion model based on this scene description.

SCENE DESCRIPTION: "%s"

Start with the main subject and their action, describe the exact setting, specify lighting, atmosphere and color palette, include camera perspective and framing, and add these style elements: %s

Keep the prompt under 400 characters but dense with visual information.
Return ONLY the prompt text with no explanations or formatting.`, description, StyleGuidance(style))
}

var cleanup = strings.NewReplacer("**", "", "Scene:", "", "Description:", "", "Prompt:", "")

func clean(s string) string {
	return strings.Trim(strings.TrimSpace(cleanup.Replace(s)), `"`)
}

// FallbackImagePrompt используется, когда модель не выдала промпт.
func FallbackImagePrompt(description string) string {
	if r := []rune(description); len(r) > 100 {
		description = string(r[:100])
	}
	return fmt.Sprintf("Horror scene: %s, dark atmosphere, cinematic lighting, film grain%s", description, DetailSuffix)
}
