package decompose

// analysisPrompt is the prompt template for task breakdown. The manager
// agent fills in the subtask list; declared dependencies reference sibling
// subtasks by title and are resolved to generated IDs after parsing.
const analysisPrompt = `Analyze the following task and break it down into subtasks:
Title: %s
Description: %s
Priority: %s

For each subtask, provide:
1. A clear title and description
2. Required capabilities/skills
3. Dependencies on other subtasks (by title)
4. Estimated complexity (1-5)
5. Expected output format

Return ONLY a JSON array of subtasks with this exact structure (no other text):
[
  {
    "title": "Subtask title",
    "description": "Detailed description",
    "requiredCapabilities": ["capability1", "capability2"],
    "dependencies": [],
    "complexity": 2,
    "expectedOutput": "Expected output format"
  }
]

Guidelines:
- Subtasks should be as independent as possible to allow parallel execution
- Only add dependencies when one subtask genuinely needs another's output
- Use empty array [] for dependencies if there are none
- Capabilities are short skill tags like "research", "writing", "data-analysis"`
