package prompts

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "category": "<one of the categories above>",
  "confidence": <number between 0 and 1>
}

Field constraints:
- category: Exactly one category name, spelled as listed.
- confidence: Numeric certainty of the assignment. 1 means the document
  unambiguously belongs to the category; values below 0.5 indicate the
  content only partially matches.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Do not include any explanation text outside the JSON object`

const extractSpec = `Respond with a JSON object matching this exact structure:

{
  "summary": "<2-4 sentence natural-language summary>",
  "fields": { "<field>": "<value>" },
  "insights": ["<insight>"],
  "action_items": ["<action>"],
  "questions": ["<question>"],
  "themes": ["<theme>"],
  "key_entities": {
    "clients": ["<name>"],
    "advisors": ["<name>"],
    "accounts": ["<identifier>"],
    "tickers": ["<symbol>"]
  }
}

Field constraints:
- summary: Concise description of the document's content and purpose.
- fields: One entry for every field listed in the prompt, using exactly those
  keys. Values are strings; join multiple values with "; ".
- insights: Notable observations an advisor should know. May be empty.
- action_items: Concrete follow-ups with owners or dates when stated. May be empty.
- questions: Open questions raised by the document. May be empty.
- themes: Short topical tags. May be empty.
- key_entities: People, accounts, and securities named in the document.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Do not invent values that are not supported by the document text`

var specs = map[Stage]string{
	StageClassify: classifySpec,
	StageExtract:  extractSpec,
}

// Spec returns the hardcoded specification for a reasoning stage.
// Specifications define the expected output format and behavioral constraints.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}

// Compose joins stage instructions with the stage specification into a
// system prompt.
func Compose(stage Stage, instructions string) (string, error) {
	spec, err := Spec(stage)
	if err != nil {
		return "", err
	}
	return instructions + "\n\n" + spec, nil
}
