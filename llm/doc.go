// Package llm defines the provider abstraction used to generate
// natural-language explanations of print plans. Concrete adapters
// live under providers/ and satisfy the Provider interface.
package llm
