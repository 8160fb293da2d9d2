// Package testutil provides the catalog and seed data shared by tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/internal/core/schema"
	"github.com/satishbabariya/relquery/internal/core/schema/parser"
)

// LibrarySchema is a small catalog with every relation kind: required and
// optional many-to-one, one-to-many, many-to-many through a join model and
// a composite key.
const LibrarySchema = `
model Continent {
  id   Int    @id
  name String
  @@map("continents")
}

model Country {
  id           Int       @id
  name         String
  continent_id Int
  continent    Continent @relation(fields: [continent_id], references: [id])
  authors      Author[]
  @@map("countries")
}

model Author {
  id         Int      @id
  name       String
  country_id Int?
  country    Country? @relation(fields: [country_id], references: [id])
  books      Book[]
  @@map("authors")
}

model Color {
  id   Int    @id
  name String
  @@map("colors")
}

model Book {
  id           Int           @id
  title        String
  year         Int
  author_id    Int
  color_id     Int?
  author       Author        @relation(fields: [author_id], references: [id])
  color        Color?        @relation(fields: [color_id], references: [id])
  tags         Tag[]         @relation(through: BookTag, from: book, to: tag)
  reviews      Review[]
  translations Translation[]
  @@map("books")
}

model Review {
  id      Int     @id
  book_id Int
  rating  Int
  body    String?
  book    Book    @relation(fields: [book_id], references: [id])
  @@map("reviews")
}

model Tag {
  id   Int    @id
  name String
  @@map("tags")
}

model BookTag {
  book_id Int
  tag_id  Int
  book    Book @relation(fields: [book_id], references: [id])
  tag     Tag  @relation(fields: [tag_id], references: [id])
  @@id([book_id, tag_id])
  @@map("book_tags")
}

model Translation {
  book_id  Int
  lang     String
  title    String
  book     Book      @relation(fields: [book_id], references: [id])
  chapters Chapter[]
  @@id([book_id, lang])
  @@map("translations")
}

model Chapter {
  id          Int         @id
  book_id     Int
  lang        String
  num         Int
  title       String
  translation Translation @relation(fields: [book_id, lang], references: [book_id, lang])
  @@map("chapters")
}
`

// LibraryCatalog parses LibrarySchema into a catalog.
func LibraryCatalog(t testing.TB) *schema.Catalog {
	t.Helper()
	s, err := parser.NewParser().Parse(context.Background(), LibrarySchema)
	require.NoError(t, err)
	c, err := schema.NewCatalog(s)
	require.NoError(t, err)
	return c
}

// LibraryDDL creates the library tables. It is portable across SQLite,
// PostgreSQL and MySQL.
var LibraryDDL = []string{
	`CREATE TABLE continents (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL)`,
	`CREATE TABLE countries (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL, continent_id INTEGER NOT NULL)`,
	`CREATE TABLE authors (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL, country_id INTEGER NULL)`,
	`CREATE TABLE colors (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL)`,
	`CREATE TABLE books (id INTEGER PRIMARY KEY, title VARCHAR(200) NOT NULL, year INTEGER NOT NULL, author_id INTEGER NOT NULL, color_id INTEGER NULL)`,
	`CREATE TABLE reviews (id INTEGER PRIMARY KEY, book_id INTEGER NOT NULL, rating INTEGER NOT NULL, body VARCHAR(200) NULL)`,
	`CREATE TABLE tags (id INTEGER PRIMARY KEY, name VARCHAR(100) NOT NULL UNIQUE)`,
	`CREATE TABLE book_tags (book_id INTEGER NOT NULL, tag_id INTEGER NOT NULL, PRIMARY KEY (book_id, tag_id))`,
	`CREATE TABLE translations (book_id INTEGER NOT NULL, lang VARCHAR(10) NOT NULL, title VARCHAR(200) NOT NULL, PRIMARY KEY (book_id, lang))`,
	`CREATE TABLE chapters (id INTEGER PRIMARY KEY, book_id INTEGER NOT NULL, lang VARCHAR(10) NOT NULL, num INTEGER NOT NULL, title VARCHAR(200) NOT NULL)`,
}

// LibrarySeed fills the library tables.
//
// Authors: Hugo (France, Europe), Murakami (Japan, Asia), Anon (no country).
// Books 1-2 are Hugo's, 3-4 Murakami's, 5 Anon's; books 2, 4 and 5 have no
// color.
var LibrarySeed = []string{
	`INSERT INTO continents (id, name) VALUES (1, 'Europe'), (2, 'Asia')`,
	`INSERT INTO countries (id, name, continent_id) VALUES (1, 'France', 1), (2, 'Japan', 2)`,
	`INSERT INTO authors (id, name, country_id) VALUES (1, 'Hugo', 1), (2, 'Murakami', 2), (3, 'Anon', NULL)`,
	`INSERT INTO colors (id, name) VALUES (1, 'red'), (2, 'blue')`,
	`INSERT INTO books (id, title, year, author_id, color_id) VALUES
		(1, 'Les Miserables', 1862, 1, 1),
		(2, 'Notre-Dame de Paris', 1831, 1, NULL),
		(3, 'Norwegian Wood', 1987, 2, 2),
		(4, 'Kafka on the Shore', 2002, 2, NULL),
		(5, 'Untitled', 2020, 3, NULL)`,
	`INSERT INTO reviews (id, book_id, rating, body) VALUES (1, 1, 5, 'great'), (2, 1, 4, NULL), (3, 3, 5, 'moving')`,
	`INSERT INTO tags (id, name) VALUES (1, 'classic'), (2, 'romance'), (3, 'surreal')`,
	`INSERT INTO book_tags (book_id, tag_id) VALUES (1, 1), (1, 2), (2, 1), (3, 2), (4, 3)`,
	`INSERT INTO translations (book_id, lang, title) VALUES (1, 'en', 'Les Miserables'), (1, 'de', 'Die Elenden'), (3, 'en', 'Norwegian Wood')`,
	`INSERT INTO chapters (id, book_id, lang, num, title) VALUES
		(1, 1, 'en', 1, 'Fantine'),
		(2, 1, 'en', 2, 'Cosette'),
		(3, 1, 'de', 1, 'Fantine (de)'),
		(4, 3, 'en', 1, 'Chapter One')`,
}
