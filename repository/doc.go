// Package repository maps between Bun persistence models and application
// domain models behind one generic CRUD abstraction, translating engine
// failures into a small typed error taxonomy.
package repository
