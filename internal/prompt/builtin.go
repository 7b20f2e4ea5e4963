package prompt

// Template names.
const (
	Triage        = "triage.md"
	CommitMessage = "commit-message.md"
	SelfDebug     = "self-debug.md"
)

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	Triage:        triageTemplate,
	CommitMessage: commitMessageTemplate,
	SelfDebug:     selfDebugTemplate,
}

const triageTemplate = `You are a senior security engineer triaging static analysis findings.

Given the following security scan results, classify each finding as:
- "critical": must be fixed before shipping (SQL injection, RCE, auth bypass, secrets in code)
- "warning": should be reviewed but not necessarily blocking (weak crypto, missing input validation)
- "info": informational, low risk (style issues, minor best-practice violations)

Respond with a JSON array of objects: [{"index": 0, "severity": "critical|warning|info", "reason": "..."}]

Only output the JSON array, nothing else.

Findings:
{{findings}}
`

const commitMessageTemplate = `You are a senior developer writing a git commit message.

Rules:
1. Use Conventional Commits format: type(scope): description
2. Types: feat, fix, refactor, docs, style, test, chore, perf, ci
3. Keep the subject line under 72 characters
4. Add a brief body (2-3 lines) explaining what changed and why
5. Do not include file lists

Context:
- Diff summary: {{diff_summary}}
- Changed files: {{changed_files}}
- Security status: {{security_status}}
- Test status: {{test_status}}
{{#if project_notes}}

Project notes:
{{project_notes}}
{{/if}}

Output only the commit message, nothing else.
`

const selfDebugTemplate = `You are a senior software engineer debugging test failures.

The following tests failed. Analyse the error output and the changed files to determine:
1. Is the test wrong, or is the source code wrong?
2. What is the root cause?
3. Suggest a minimal fix (code patch).

Keep your response concise. Format your fix as a unified diff.

Failed test output:
{{test_output}}

Changed files:
{{changed_files}}

Test errors:
{{errors}}
`
