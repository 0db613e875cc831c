package settings

// SpaceId is the number of the _session_settings system space.
const SpaceId uint32 = 380

// In Go and IPROTO_UPDATE count starts with 0.
const valueField int = 1

// Names of the session settings.
const (
	ErrorMarshalingEnabled     = "error_marshaling_enabled"
	SQLDefaultEngine           = "sql_default_engine"
	SQLDeferForeignKeys        = "sql_defer_foreign_keys"
	SQLFullColumnNames         = "sql_full_column_names"
	SQLFullMetadata            = "sql_full_metadata"
	SQLParserDebug             = "sql_parser_debug"
	SQLRecursiveTriggers       = "sql_recursive_triggers"
	SQLReverseUnorderedSelects = "sql_reverse_unordered_selects"
	SQLSelectDebug             = "sql_select_debug"
	SQLVDBEDebug               = "sql_vdbe_debug"
)
