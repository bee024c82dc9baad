// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

// systemPrompts holds the localized system prompt sent with chat requests,
// keyed by detected language code.
var systemPrompts = map[string]string{
	"ar":     "أنت مساعد ذكي تقدم إجابات مفصلة ومنظمة باللغة العربية، مع ضمان الدقة والوضوح.",
	"en":     "You are an expert assistant providing detailed, comprehensive, and well-structured responses.",
	"en-us":  "You are an expert assistant providing detailed, comprehensive, and well-structured responses in American English.",
	"en-gb":  "You are an expert assistant providing detailed, comprehensive, and well-structured responses in British English.",
	"en-sc":  "You are an expert assistant providing detailed, comprehensive, and well-structured responses in Scottish English.",
	"fr":     "Vous êtes un assistant expert fournissant des réponses détaillées, complètes et bien structurées.",
	"es":     "Eres un asistente experto que proporciona respuestas detalladas, completas y bien estructuradas.",
	"es-la":  "Eres un asistente experto que proporciona respuestas detalladas, completas y bien estructuradas en español latinoamericano.",
	"pt":     "Você é um assistente especialista que fornece respostas detalhadas, completas e bem estruturadas.",
	"pt-pt":  "Você é um assistente especialista que fornece respostas detalhadas, completas e bem estruturadas em português europeu.",
	"de":     "Sie sind ein Expertenassistent, der detaillierte, umfassende und gut strukturierte Antworten liefert.",
	"it":     "Sei un assistente esperto che fornisce risposte dettagliate, complete e ben strutturate.",
	"cs":     "Jste odborný asistent, který poskytuje podrobné, úplné a dobře strukturované odpovědi.",
	"pl":     "Jesteś ekspertem asystentem, który dostarcza szczegółowych, kompleksowych i dobrze zorganizowanych odpowiedzi.",
	"hu":     "Ön egy szakértő asszisztens, aki részletes, átfogó és jól strukturált válaszokat ad.",
	"lv":     "Jūs esat ekspertu asistents, kas sniedz detalizētas, visaptverošas un labi strukturētas atbildes.",
	"sv":     "Du är en expertassistent som ger detaljerade, omfattande och välstrukturerade svar.",
	"ro":     "Ești un asistent expert care oferă răspunsuri detaliate, complete și bine structurate.",
	"sk":     "Ste odborný asistent, ktorý poskytuje podrobné, komplexné a dobre štruktúrované odpovede.",
	"tr":     "Ayrıntılı, kapsamlı ve iyi yapılandırılmış yanıtlar veren bir uzman asistanısınız.",
	"ru":     "Вы эксперт-помощник, предоставляющий подробные, всесторонние и хорошо структурированные ответы.",
	"el":     "Είσαι ένας ειδικός βοηθός που παρέχει λεπτομερείς, ολοκληρωμένες και καλά δομημένες απαντήσεις.",
	"he":     "אתה עוזר מומחה שמספק תשובות מפורטות, מקיפות ומאורגנות היטב.",
	"la":     "Es assistens peritus qui responsa accurata, comprehensiva et bene ordinata praebet.",
	"kn":     "ನೀವು ವಿವರವಾದ, ಸಮಗ್ರ ಮತ್ತು ಚೆನ್ನಾಗಿ ರಚಿತ ಉತ್ತರಗಳನ್ನು ಒದಗಿಸುವ ತಜ್ಞ ಸಹಾಯಕರಾಗಿದ್ದೀರಿ.",
	"ca":     "Ets un assistent expert que proporciona respostes detallades, completes i ben estructurades.",
	"nl":     "Je bent een deskundige assistent die gedetailleerde, uitgebreide en goed gestructureerde antwoorden geeft.",
	"eo":     "Vi estas sperta asistanto, kiu provizas detalan, ampleksan kaj bone strukturitan respondojn.",
	"fi":     "Olet asiantuntija-assistentti, joka antaa yksityiskohtaisia, kattavia ja hyvin jäsenneltyjä vastauksia.",
	"zh":     "你是一个提供详细、全面且结构良好的回答的专家助手。",
	"zh-yue": "你係一個提供詳細、全面同結構良好嘅回應嘅專家助手。",
}

// SystemPrompt returns the localized system prompt for a language code,
// falling back to English.
func SystemPrompt(lang string) string {
	if prompt, ok := systemPrompts[lang]; ok {
		return prompt
	}
	return systemPrompts["en"]
}
