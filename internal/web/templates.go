package web

import "html/template"

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>F1 Win Probability Predictor</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
label { display: block; margin-top: 1rem; }
.result { margin-top: 1.5rem; padding: 1rem; background: #e8f5e9; }
.error { margin-top: 1.5rem; padding: 1rem; background: #ffebee; }
.warning { margin-top: 1rem; padding: 0.5rem 1rem; background: #fff8e1; }
</style>
</head>
<body>
<h1>F1 Win Probability Predictor</h1>
{{template "content" .}}
</body>
</html>{{end}}`

const formHTML = `{{define "content"}}
<form method="post" action="/predict">
  <label>Grid Position
    <input type="range" name="grid" min="{{.MinGrid}}" max="{{.MaxGrid}}" value="{{.Request.Grid}}" oninput="this.nextElementSibling.value = this.value">
    <output>{{.Request.Grid}}</output>
  </label>
  <label>Round
    <input type="number" name="round" min="{{.MinRound}}" max="{{.MaxRound}}" value="{{.Request.Round}}">
  </label>
  <label>Driver
    <select name="driver">{{range .Choices.Drivers}}<option{{if eq . $.Request.Driver}} selected{{end}}>{{.}}</option>{{end}}</select>
  </label>
  <label>Grand Prix
    <select name="race">{{range .Choices.Races}}<option{{if eq . $.Request.Race}} selected{{end}}>{{.}}</option>{{end}}</select>
  </label>
  <label>Team
    <select name="team">{{range .Choices.Teams}}<option{{if eq . $.Request.Team}} selected{{end}}>{{.}}</option>{{end}}</select>
  </label>
  <p><button type="submit">Predict Probability</button></p>
</form>
{{if .Result}}<div class="result">{{.Result.Message}}</div>{{end}}
{{if .Error}}<div class="error">{{.Error}}</div>{{end}}
{{if .Fallback}}<div class="warning">Model schema lacks columns for: {{range $i, $c := .Fallback}}{{if $i}}, {{end}}{{$c}}{{end}}. Showing default values.</div>{{end}}
{{end}}`

const blockedHTML = `{{define "content"}}
<div class="error">{{.Message}}</div>
{{end}}`

var (
	formTemplate    = template.Must(template.Must(template.New("layout").Parse(layoutHTML)).Parse(formHTML))
	blockedTemplate = template.Must(template.Must(template.New("layout").Parse(layoutHTML)).Parse(blockedHTML))
)
