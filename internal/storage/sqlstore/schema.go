package sqlstore

// schemaNormalized is the on-disk layout of spec.md §6: six entity tables
// plus one row per edge for each of the five relation tables. Grounded on
// the teacher's internal/storage/sqlite schema style (plain CREATE TABLE IF
// NOT EXISTS, explicit PRIMARY KEY, no ORM) and on the original's
// postgresql/provenance.sql table shapes.
const schemaNormalized = `
CREATE TABLE IF NOT EXISTS content (
	id   BINARY(20) PRIMARY KEY,
	date DATETIME(6) NULL
);

CREATE TABLE IF NOT EXISTS directory (
	id   BINARY(20) PRIMARY KEY,
	date DATETIME(6) NULL,
	flat BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS revision (
	id     BINARY(20) PRIMARY KEY,
	date   DATETIME(6) NULL,
	origin BINARY(20) NULL
);

CREATE TABLE IF NOT EXISTS origin (
	id  BINARY(20) PRIMARY KEY,
	url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS location (
	id    BINARY(20) PRIMARY KEY,
	bytes VARBINARY(2048) NOT NULL
);

CREATE TABLE IF NOT EXISTS content_in_revision (
	blob BINARY(20) NOT NULL,
	rev  BINARY(20) NOT NULL,
	path VARBINARY(2048) NOT NULL DEFAULT '',
	PRIMARY KEY (blob, rev, path)
);

CREATE TABLE IF NOT EXISTS content_in_directory (
	blob BINARY(20) NOT NULL,
	dir  BINARY(20) NOT NULL,
	path VARBINARY(2048) NOT NULL DEFAULT '',
	PRIMARY KEY (blob, dir, path)
);

CREATE TABLE IF NOT EXISTS directory_in_revision (
	dir  BINARY(20) NOT NULL,
	rev  BINARY(20) NOT NULL,
	path VARBINARY(2048) NOT NULL DEFAULT '',
	PRIMARY KEY (dir, rev, path)
);

CREATE TABLE IF NOT EXISTS revision_in_origin (
	rev    BINARY(20) NOT NULL,
	origin BINARY(20) NOT NULL,
	PRIMARY KEY (rev, origin)
);

CREATE TABLE IF NOT EXISTS revision_before_revision (
	prev BINARY(20) NOT NULL,
	next BINARY(20) NOT NULL,
	PRIMARY KEY (prev, next)
);
`

// schemaDenormalized replaces the three path-carrying relation tables with
// one row per source entity, carrying a JSON array of (destination,
// location) pairs (spec.md §4.1, §9 "Denormalized relation storage").
const schemaDenormalized = `
CREATE TABLE IF NOT EXISTS content (
	id   BINARY(20) PRIMARY KEY,
	date DATETIME(6) NULL
);

CREATE TABLE IF NOT EXISTS directory (
	id   BINARY(20) PRIMARY KEY,
	date DATETIME(6) NULL,
	flat BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS revision (
	id     BINARY(20) PRIMARY KEY,
	date   DATETIME(6) NULL,
	origin BINARY(20) NULL
);

CREATE TABLE IF NOT EXISTS origin (
	id  BINARY(20) PRIMARY KEY,
	url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS location (
	id    BINARY(20) PRIMARY KEY,
	bytes VARBINARY(2048) NOT NULL
);

CREATE TABLE IF NOT EXISTS content_in_revision (
	blob  BINARY(20) PRIMARY KEY,
	edges JSON NOT NULL
);

CREATE TABLE IF NOT EXISTS content_in_directory (
	blob  BINARY(20) PRIMARY KEY,
	edges JSON NOT NULL
);

CREATE TABLE IF NOT EXISTS directory_in_revision (
	dir   BINARY(20) PRIMARY KEY,
	edges JSON NOT NULL
);

CREATE TABLE IF NOT EXISTS revision_in_origin (
	rev    BINARY(20) NOT NULL,
	origin BINARY(20) NOT NULL,
	PRIMARY KEY (rev, origin)
);

CREATE TABLE IF NOT EXISTS revision_before_revision (
	prev BINARY(20) NOT NULL,
	next BINARY(20) NOT NULL,
	PRIMARY KEY (prev, next)
);
`
