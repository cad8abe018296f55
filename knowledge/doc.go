// Package knowledge manages the markdown knowledge base used to ground plan
// explanations: documents are split into overlapping chunks, embedded, stored
// via GORM, and retrieved by cosine similarity.
package knowledge
