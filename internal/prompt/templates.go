package prompt

// jsonSchema is the output contract shared by all three system templates.
// The parser tolerates drift, but asking for this shape keeps the JSON
// strategy on the happy path.
const jsonSchema = `Respond with a single JSON object of this exact shape:
{
  "summary_text": "string — the summary itself",
  "key_points": ["string", ...],
  "action_items": [{"description": "string", "assignee": "string or null", "priority": "low|medium|high|critical", "completed": false}, ...],
  "technical_terms": [{"term": "string", "definition": "string", "context": "string or null"}, ...],
  "participants": [{"display_name": "string", "message_count": 0, "key_contributions": ["string", ...]}, ...]
}`

// systemBrief targets a compact digest within a 1000-token output budget.
const systemBrief = `You are a conversation summarizer for chat channels. Produce a brief summary of the supplied messages.

Keep summary_text to a few sentences covering only the main outcome of the discussion. Limit key_points to the 3-5 most important items.

` + jsonSchema

// systemDetailed targets a structured digest within a 4000-token output budget.
const systemDetailed = `You are a conversation summarizer for chat channels. Produce a detailed summary of the supplied messages.

Cover the main topics in order, who drove each one, and what was decided. Include up to 10 key_points, and capture concrete follow-ups as action_items with a priority for each.

` + jsonSchema

// systemComprehensive targets an exhaustive digest within an 8000-token output budget.
const systemComprehensive = `You are a conversation summarizer for chat channels. Produce a comprehensive summary of the supplied messages.

Walk through every significant topic with its full context: positions taken, alternatives discussed, and final decisions. Extract all action_items with assignees where stated, all technical_terms with definitions, and per-participant contributions.

` + jsonSchema

// Negative instructions appended when extraction flags are disabled.
const (
	noActionItems    = "\n\nDo not extract action items; return an empty action_items array."
	noTechnicalTerms = "\n\nDo not extract technical terms; return an empty technical_terms array."
)
