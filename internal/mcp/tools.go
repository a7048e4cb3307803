package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = map[string]any{"type": "string"}

var listToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List notes, pinned first then most recently updated. Returns excerpts, not full content."),
	mcp.WithString("query", mcp.Description("Case-insensitive text to match in title or content")),
	mcp.WithString("tag", mcp.Description("Only notes carrying this exact tag")),
	mcp.WithNumber("limit", mcp.Description("Maximum items to return (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var fetchToolDef = mcp.NewTool("note_fetch",
	mcp.WithDescription("Fetch a single note with its full content."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
)

var saveToolDef = mcp.NewTool("note_save",
	mcp.WithDescription("Create or update a note. Omit id to create. Only the fields given are changed. "+
		"A note with a blank title and blank content is not created, and an update that changes nothing is not written."),
	mcp.WithString("id", mcp.Description("Id of the note to update; omit to create")),
	mcp.WithString("title", mcp.Description("Plain-text title")),
	mcp.WithString("content", mcp.Description("Note body")),
	mcp.WithArray("tags", mcp.Description("Replace all tags"), mcp.Items(stringItems)),
	mcp.WithArray("add_tags", mcp.Description("Tags to add"), mcp.Items(stringItems)),
	mcp.WithArray("remove_tags", mcp.Description("Tags to remove"), mcp.Items(stringItems)),
)

var pinToolDef = mcp.NewTool("note_pin",
	mcp.WithDescription("Pin or unpin a note. Pinned notes list first."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	mcp.WithBoolean("pinned", mcp.Description("true to pin (default), false to unpin")),
)

var deleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Permanently delete a note."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
)

var exportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Write notes as markdown files with YAML front matter, one <id>.md per note."),
	mcp.WithString("dir", mcp.Description("Target directory (default ~/.scribe/exports)")),
	mcp.WithString("tag", mcp.Description("Only export notes carrying this tag")),
)

var importToolDef = mcp.NewTool("note_import",
	mcp.WithDescription("Create a note from every markdown file in a directory. Imported notes get new ids."),
	mcp.WithString("dir", mcp.Required(), mcp.Description("Directory to read *.md files from")),
)
