// Package broker drives bounded agent-to-agent handoff loops.
//
// # Overview
//
// A conversation starts at one agent and proceeds hop by hop: each reply
// names the next agent in to_agent and its output becomes the next hop's
// input message. The loop ends when a reply sets end_conversation or leaves
// to_agent empty, or when the step budget runs out.
//
// # Termination
//
//   - completion signal: reply.end_conversation == true or to_agent == ""
//   - step budget: at most maxSteps hops per run, a soft stop reported as
//     status "step_limit" rather than an error
//   - hop failure: unreachable agent, malformed reply, or unknown handoff
//     target aborts the run immediately, leaving the log truncated at the
//     last successful turn
//
// Hops run strictly sequentially. Because each hop's output feeds the next
// hop's input, the broker never retries or skips a failed hop; substituting
// a default would fabricate agent behavior.
package broker
