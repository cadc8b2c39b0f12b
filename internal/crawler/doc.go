// Package crawler defines the core types, interfaces, and URL policy shared
// across the crawl subsystems: frontier entries, page metadata, failure
// records, and the collaborator interfaces implemented by the browser
// session, the document downloader, and the page fetcher.
package crawler
