package ollama

// StructuringPrompt instructs the generation model to distill raw page text
// into a compact structured record. The model must answer with JSON only.
const StructuringPrompt = `You are a meticulous research analyst. You will be given the raw text of a web page.

Distill it into a structured record with exactly these JSON fields:
- "title": a short, specific title for the document (plain text, no markup)
- "summary": a dense summary of the document's substantive content, three to six sentences
- "entities": an array of the proper nouns central to the document (people, organizations, places, products)

Ignore navigation text, boilerplate, cookie notices, and advertising. If the page has no substantive content, still produce your best title and summary for what remains.

Respond with a single JSON object and nothing else.`

// AnswerPrompt instructs the generation model to answer a question using only
// the retrieved knowledge passages.
const AnswerPrompt = `You are a precise research assistant. Answer the user's question using only the numbered context passages provided.

Cite passages by number where relevant, like [1]. If the context does not contain enough information to answer, say so plainly instead of guessing.`
