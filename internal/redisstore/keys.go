package redisstore

const keyPrefix = "scribe:"

// DocKey returns the hash key holding one document.
func DocKey(collection, id string) string {
	return keyPrefix + collection + ":doc:" + id
}

// IndexKey returns the set key listing every document id in a collection.
func IndexKey(collection string) string {
	return keyPrefix + collection + ":ids"
}

// Hash field names.
const (
	hTitle     = "title"
	hContent   = "content"
	hTags      = "tags"
	hPinned    = "pinned"
	hCreatedAt = "createdAt"
	hUpdatedAt = "updatedAt"
)
