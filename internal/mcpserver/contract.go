package mcpserver

// LayoutContract describes how vizbase stores artifacts and decides a pass,
// so that LLM consumers can reason about verify_image results.
const LayoutContract = `# vizbase Artifact Contract

## Keys

A visual target is identified by a **group** and a **name**, e.g. group
` + "`" + `ReportsSummary` + "`" + `, name ` + "`" + `results-pie` + "`" + `. Neither may be empty, contain
` + "`" + `/` + "`" + `, ` + "`" + `\` + "`" + `, ` + "`" + `:` + "`" + ` or ` + "`" + `..` + "`" + `.

## Files

` + "```" + `
<root>/Baselines/{group}/{name}.png          approved reference image
<root>/Diffs/{group}/{name}_diff.png         last failed comparison, differing pixels in red
<root>/Diffs/{group}/{name}_current.png      last capture whose size diverged too far
` + "```" + `

## Verification

1. If no baseline exists, the submitted image **becomes** the baseline and the
   run passes. Nothing is compared.
2. If width or height differ by more than 3 pixels, the run fails without a
   pixel scan and the capture is kept as ` + "`" + `_current.png` + "`" + `.
3. Otherwise every baseline pixel is compared exactly (all four RGBA
   channels). The ratio of differing pixels must be **at most** the threshold
   (default 0.02, i.e. 2%).
4. A failing run writes ` + "`" + `_diff.png` + "`" + `; a passing run deletes any old evidence.

## Updating a baseline

Baselines are never overwritten by verification. To accept a new rendering,
delete the baseline file and verify again.
`
