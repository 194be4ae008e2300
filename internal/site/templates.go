package site

// pageTemplate wraps every rendered page.
const pageTemplate = `<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} | Diagram Studio</title>
  <style>` + cssContent + `</style>
</head>
<body>
  <header class="top-bar">
    <a class="brand" href="/">Diagram Studio</a>
    <nav>
      <a href="/editor">New diagram</a>
      <a href="/diagrams">Gallery</a>
      <a href="/help">Help</a>
    </nav>
  </header>
  <main class="content">
    <article class="page-content">
      {{.Content}}
    </article>
  </main>
</body>
</html>`

const cssContent = `
:root {
  --bg: #ffffff;
  --bg-secondary: #f8f9fa;
  --text: #212529;
  --text-muted: #868e96;
  --border: #dee2e6;
  --accent: #228be6;
  --code-bg: #f1f3f5;
  --table-stripe: #f8f9fa;
  --content-max-width: 900px;
}

[data-theme="dark"] {
  --bg: #1a1b26;
  --bg-secondary: #1f2030;
  --text: #c0caf5;
  --text-muted: #565f89;
  --border: #292e42;
  --accent: #7aa2f7;
  --code-bg: #1f2030;
  --table-stripe: #1f2030;
}

*, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }

body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
  color: var(--text);
  background: var(--bg);
  line-height: 1.7;
}

a { color: var(--accent); text-decoration: none; }
a:hover { text-decoration: underline; }

.top-bar {
  display: flex;
  justify-content: space-between;
  align-items: center;
  padding: 0.75rem 1.5rem;
  border-bottom: 1px solid var(--border);
  background: var(--bg-secondary);
}
.top-bar nav a { margin-left: 1.25rem; }
.brand { font-weight: 700; color: var(--text); }

.content { max-width: var(--content-max-width); margin: 0 auto; padding: 2rem 1.5rem; }

.page-content h1 { font-size: 2rem; margin-bottom: 1rem; }
.page-content h2 { font-size: 1.5rem; margin: 2rem 0 0.75rem; padding-bottom: 0.25rem; border-bottom: 1px solid var(--border); }
.page-content h3 { font-size: 1.15rem; margin: 1.25rem 0 0.5rem; }
.page-content p, .page-content ul { margin-bottom: 1rem; }
.page-content ul { padding-left: 1.5rem; }
.page-content pre { padding: 1rem; border-radius: 6px; overflow-x: auto; background: var(--code-bg); margin-bottom: 1rem; }
.page-content code { font-family: "SFMono-Regular", Consolas, "Liberation Mono", Menlo, monospace; font-size: 0.9em; }

.page-content table { border-collapse: collapse; width: 100%; margin-bottom: 1rem; }
.page-content th, .page-content td { border: 1px solid var(--border); padding: 0.5rem 0.75rem; text-align: left; }
.page-content tr:nth-child(even) { background: var(--table-stripe); }
`
