// Package classify maps file paths to a content kind and size policy.
//
// The kind is a closed set: Text, Image, PDF, or Binary. Text is inlined into
// the context payload under the tightest size ceiling since inlined bytes cost
// tokens; Image and PDF travel as base64 attachments under larger ceilings;
// Binary (archives, executables, shared objects, wasm, media containers,
// fonts, databases) is excluded from any payload regardless of size.
//
// Classification is driven by a closed table of extensions and well-known
// basenames. An unknown extension classifies as Text — an explicit policy
// choice, not a silent fallthrough: most unrecognized files in a repository
// are source or configuration in some dialect, and the Text ceiling bounds
// the damage when that guess is wrong.
package classify
