package prompt

import "strings"

// Nudges appended as assistant turns in the reasoning modes.
const (
	StepByStep  = "Let's think step by step."
	FinalAnswer = "Therefore, the final answer is "
)

// Pair is one training example.
type Pair struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

func pairBlock(p Pair) string {
	return "Input: " + p.Input + "\nOutput: " + p.Output + "\n"
}

// FewShotPrompt renders every pair in order followed by the message.
func FewShotPrompt(pairs []Pair, message string) string {
	if len(pairs) == 0 {
		return message
	}
	blocks := make([]string, len(pairs))
	for i, p := range pairs {
		blocks[i] = pairBlock(p)
	}
	return strings.Join(blocks, "\n") + "\n\n" + message
}

// LegacyFewShotPrompt reproduces the earlier prompt builder, which reassigned
// its accumulator on every pair: only the last pair reaches the model.
func LegacyFewShotPrompt(pairs []Pair, message string) string {
	acc := "\n\n"
	for _, p := range pairs {
		acc = pairBlock(p)
	}
	return acc + "\n\n" + message
}

// ChainFewShotPrompt renders each pair with the step-by-step marker in front
// of its output, separated by blank lines, followed by the message.
// With no pairs only the separator and the message remain.
func ChainFewShotPrompt(pairs []Pair, message string) string {
	blocks := make([]string, len(pairs))
	for i, p := range pairs {
		blocks[i] = "Input: " + p.Input + "\nOutput: " + StepByStep + " \n" + p.Output
	}
	return strings.Join(blocks, "\n\n") + "\n\n" + message
}
