// Package extract turns inbound payloads into entities.
//
// Rules is a small pattern-based extractor suited to command-line and test
// bots: it matches the text of a message against regular expressions and
// passes postback payloads through unchanged. Production deployments usually
// plug an NLU service in through ports.EntityExtractor instead.
package extract
