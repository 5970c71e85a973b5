// Package render is the templating and localization step shared by every
// page the controller produces.
//
// Pages go through two passes. The template source is localized first:
// [[.key]] placeholders are replaced from the dictionary of the best
// matching language. The localized source is then rendered with
// html/template ({{ }}) against handler data, so data is never localized.
package render
