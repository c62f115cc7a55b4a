package store

// sqliteSchema is applied statement by statement on open.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    category           TEXT NOT NULL,
    location           TEXT NOT NULL,
    quantity           REAL NOT NULL,
    unit               TEXT NOT NULL,
    unit_step          REAL NOT NULL DEFAULT 1,
    burn_rate          REAL,
    reorder_threshold  REAL,
    auto_reorder       INTEGER NOT NULL DEFAULT 0,
    typical_quantity   REAL NOT NULL DEFAULT 0,
    last_updated       TEXT NOT NULL,
    created_at         TEXT NOT NULL,
    revision           INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS observations (
    seq                INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id            TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    quantity_after     REAL NOT NULL,
    ts                 TEXT NOT NULL,
    kind               TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS receipts (
    id                 TEXT PRIMARY KEY,
    source             TEXT NOT NULL,
    processed          INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL,
    processed_at       TEXT
)`,
	`CREATE TABLE IF NOT EXISTS receipt_items (
    receipt_id         TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
    line               INTEGER NOT NULL,
    name               TEXT NOT NULL,
    quantity           REAL NOT NULL,
    unit               TEXT,
    price              TEXT,
    category           TEXT,
    matched_item_id    TEXT,
    match_strategy     TEXT,
    PRIMARY KEY (receipt_id, line)
)`,
	`CREATE TABLE IF NOT EXISTS shopping_items (
    id                 TEXT PRIMARY KEY,
    item_id            TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    name               TEXT NOT NULL,
    unit               TEXT NOT NULL,
    suggested_quantity REAL NOT NULL,
    priority           TEXT NOT NULL,
    purchased          INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    purchased_at       TEXT,
    position           INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_item ON observations(item_id, ts)`,
	`CREATE INDEX IF NOT EXISTS idx_shopping_item ON shopping_items(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_created ON receipts(created_at)`,
}

// mysqlSchema mirrors sqliteSchema; indexes are declared inline because
// MySQL has no CREATE INDEX IF NOT EXISTS.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
    id                 VARCHAR(64) PRIMARY KEY,
    name               VARCHAR(255) NOT NULL,
    category           VARCHAR(128) NOT NULL,
    location           VARCHAR(128) NOT NULL,
    quantity           DOUBLE NOT NULL,
    unit               VARCHAR(32) NOT NULL,
    unit_step          DOUBLE NOT NULL DEFAULT 1,
    burn_rate          DOUBLE NULL,
    reorder_threshold  DOUBLE NULL,
    auto_reorder       TINYINT NOT NULL DEFAULT 0,
    typical_quantity   DOUBLE NOT NULL DEFAULT 0,
    last_updated       VARCHAR(40) NOT NULL,
    created_at         VARCHAR(40) NOT NULL,
    revision           BIGINT NOT NULL
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS observations (
    seq                BIGINT AUTO_INCREMENT PRIMARY KEY,
    item_id            VARCHAR(64) NOT NULL,
    quantity_after     DOUBLE NOT NULL,
    ts                 VARCHAR(40) NOT NULL,
    kind               VARCHAR(16) NOT NULL,
    INDEX idx_observations_item (item_id, ts),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS receipts (
    id                 VARCHAR(64) PRIMARY KEY,
    source             VARCHAR(16) NOT NULL,
    processed          TINYINT NOT NULL DEFAULT 0,
    created_at         VARCHAR(40) NOT NULL,
    processed_at       VARCHAR(40) NULL,
    INDEX idx_receipts_created (created_at)
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS receipt_items (
    receipt_id         VARCHAR(64) NOT NULL,
    line               INT NOT NULL,
    name               VARCHAR(255) NOT NULL,
    quantity           DOUBLE NOT NULL,
    unit               VARCHAR(32) NULL,
    price              VARCHAR(32) NULL,
    category           VARCHAR(128) NULL,
    matched_item_id    VARCHAR(64) NULL,
    match_strategy     VARCHAR(32) NULL,
    PRIMARY KEY (receipt_id, line),
    FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS shopping_items (
    id                 VARCHAR(64) PRIMARY KEY,
    item_id            VARCHAR(64) NOT NULL,
    name               VARCHAR(255) NOT NULL,
    unit               VARCHAR(32) NOT NULL,
    suggested_quantity DOUBLE NOT NULL,
    priority           VARCHAR(16) NOT NULL,
    purchased          TINYINT NOT NULL DEFAULT 0,
    created_at         VARCHAR(40) NOT NULL,
    updated_at         VARCHAR(40) NOT NULL,
    purchased_at       VARCHAR(40) NULL,
    position           BIGINT NOT NULL,
    INDEX idx_shopping_item (item_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
}
