package extract

// extractorSystemPrompt steers the model toward beliefs, not quotes. The
// output contract is JSON only; the schema is repeated in the user prompt.
const extractorSystemPrompt = `You are SozoGraph Extractor v1.

You convert user interaction text into a compact, structured "Passport" update.
Your output MUST be valid JSON and MUST match the provided schema.

Core philosophy:
- Extract beliefs, not quotes.
- Separate facts (what is true now) from preferences (what the user likes/wants).
- Track entities (projects/people/orgs/tools/places) and their aliases.
- Capture open loops (missing info, TODOs, unresolved questions).
- If a key is updated (e.g., new location), emit the new value as a fact; the system will handle contradictions.

Rules:
- Output JSON ONLY. No markdown, no prose.
- Be conservative: include only details that are likely stable or actionable.
- Prefer short normalized keys: snake_case, lowercase.
- Confidence is 0..1. Use lower confidence when you are inferring rather than reading explicitly.
- Do NOT include random IDs. Only include identifiers if they are human-meaningful.
- Do NOT hallucinate. If unsure, omit.`

// extractorJSONSchema is echoed inside the request so the model is forced to
// comply. Keep in sync with the passport package.
const extractorJSONSchema = `{
  "facts": [
    { "key": "string", "value": "any_json", "confidence": 0.0, "source": "string", "ts": "optional_iso8601" }
  ],
  "prefs": [
    { "key": "string", "value": "any_json", "confidence": 0.0, "source": "string", "ts": "optional_iso8601" }
  ],
  "entities": [
    { "name": "string", "type": "person|organization|project|product|place|tool|skill|concept|other", "aliases": ["string"] }
  ],
  "open_loops": [
    { "item": "string", "source": "string", "ts": "optional_iso8601" }
  ]
}`

const extractorUserPromptTemplate = `SCHEMA (must match exactly; JSON only, no extra keys):
%s

SOURCE_ID: %s

INTERACTION_TYPE: %s
INTERACTION_TIMESTAMP_ISO: %s

TEXT:
%s

TASK:
Extract ONLY stable, useful updates.
Return JSON with keys: facts, prefs, entities, open_loops.
- facts: stable truth about the user or their state (role, location, project status, tools owned, skill level, etc.)
- prefs: stable preferences (tone, style likes/dislikes, language, constraints)
- entities: any important named entities with type + aliases
- open_loops: questions/tasks that remain unresolved

IMPORTANT:
- Output JSON ONLY.
- Keep it small.`

// summarizerSystemPrompt rewrites structured-store noise into short prose the
// extractor can work with.
const summarizerSystemPrompt = `You are SozoGraph Fallback Summarizer v1.

You are given an arbitrary JSON object from a database (document store / KV tree / relational DB).
Your job is to produce a compact human-readable summary string that captures the meaning
without dumping raw blobs or irrelevant IDs.

Rules:
- Output plain text ONLY (no JSON, no markdown).
- Keep it short (2-8 lines max).
- Focus on human meaning: who/what/when/status/decision/outcome.
- Avoid internal IDs unless they are meaningful to a human.
- If the object is mostly noise, say what it represents at a high level.`

const summarizerUserPromptTemplate = `OBJECT (JSON):
%s

TASK:
Write a compact summary suitable for an AI memory system.`
