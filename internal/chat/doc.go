// Package chat implements the conversational action orchestrator: per-client
// rate limiting, prompt construction with temporal context, defensive
// interpretation of hybrid text/JSON model output, and dispatch of
// interpreted actions to the calendar gateway.
package chat
