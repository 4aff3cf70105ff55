package workflow

// EngineVersion identifies the engine build that produced a run record.
const EngineVersion = "0.3.0"

// DialectVersion identifies the workflow dialect accepted by the parser.
const DialectVersion = "v1"
