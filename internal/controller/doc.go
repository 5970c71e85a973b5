// Package controller is the runtime controller of the app shell.
//
// Every intercepted request goes through the same path:
//
//	Dispatch -> first claiming Handler -> Result
//	         -> (fault) Translate -> error page
//	         -> Compose -> Response
//
// Normal pages and error pages share Compose, so both are localized the same
// way. Refresh and Logout act on the local store outside of that path.
package controller
