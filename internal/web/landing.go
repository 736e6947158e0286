package web

import "github.com/a-h/templ"

// landingPage is the static page served at /. It exists so a browser
// hitting the service root lands on something useful instead of a 404.
var landingPage = templ.Raw(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>DataBridge</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; color: #1a1a1a; }
    code { background: #f2f2f2; padding: 0.15rem 0.35rem; border-radius: 3px; }
    a { color: #0b5fff; }
  </style>
</head>
<body>
  <h1>DataBridge</h1>
  <p>Declarative record-transformation pipelines over uploaded CSV and Excel files.</p>
  <ul>
    <li><a href="/swagger/index.html">API documentation</a></li>
    <li><a href="/health">Health</a></li>
    <li><a href="/metrics">Metrics</a></li>
  </ul>
  <p>Define a pipeline with <code>POST /api/pipelines</code>, then execute it with
  <code>POST /api/pipelines/{id}/run</code>.</p>
</body>
</html>`)

var landingHandler = templ.Handler(landingPage)
