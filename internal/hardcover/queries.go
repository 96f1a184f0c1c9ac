package hardcover

// GraphQL documents. Field selections are deliberately broad so the
// extraction rules in extract.go can cope with schema drift.

const bookFields = `
	id
	title
	slug
	rating
	description
	cached_tags
	cached_contributors
	contributions { author { name } }
	image { url }
	editions(limit: 5) { isbn_13 isbn_10 }
`

const searchByTitleQuery = `
query BookByTitle($title: String!) {
  books(where: {title: {_eq: $title}}, order_by: {users_count: desc}, limit: 1) {` + bookFields + `}
}`

const searchByISBNQuery = `
query BookByISBN($isbn: String!) {
  editions(where: {isbn_13: {_eq: $isbn}}, limit: 1) {
    book {` + bookFields + `}
  }
}`

const listsForBookQuery = `
query ListsForBook($bookId: Int!, $limit: Int!) {
  lists(
    where: {list_books: {book_id: {_eq: $bookId}}, public: {_eq: true}}
    order_by: {followers_count: desc}
    limit: $limit
  ) {
    id
    name
    slug
    books_count
  }
}`

const listBooksQuery = `
query ListBooks($listId: Int!, $limit: Int!) {
  list_books(where: {list_id: {_eq: $listId}}, order_by: {position: asc}, limit: $limit) {
    book {` + bookFields + `}
  }
}`

// queryVariant is one probe in a capability-probe sequence: variants are
// tried in order and the first non-error, non-empty response wins.
type queryVariant struct {
	name  string
	query string
	// root is the path from the response data object to the result list.
	root []string
}

// listIDVariants resolve a user's "Want To Read" shelf/list id. The API
// has exposed this through at least three shapes over time.
var listIDVariants = []queryVariant{
	{
		name: "user_lists",
		query: `
query UserLists($username: String!) {
  users(where: {username: {_eq: $username}}, limit: 1) {
    lists(where: {slug: {_eq: "want-to-read"}}, limit: 1) { id }
  }
}`,
		root: []string{"users", "lists", "id"},
	},
	{
		name: "lists_by_user",
		query: `
query ListsByUser($username: String!) {
  lists(where: {user: {username: {_eq: $username}}, slug: {_eq: "want-to-read"}}, limit: 1) {
    id
  }
}`,
		root: []string{"lists", "id"},
	},
	{
		name: "me_lists",
		query: `
query MeLists {
  me {
    lists(where: {slug: {_eq: "want-to-read"}}, limit: 1) { id }
  }
}`,
		root: []string{"me", "lists", "id"},
	},
}

// wantListVariants fetch the books on a want-to-read list.
var wantListVariants = []queryVariant{
	{
		name: "list_books",
		query: `
query WantListBooks($listId: Int!, $limit: Int!) {
  list_books(where: {list_id: {_eq: $listId}}, limit: $limit) {
    book {` + bookFields + `}
  }
}`,
		root: []string{"list_books", "book"},
	},
	{
		name: "user_books_status",
		query: `
query WantListUserBooks($limit: Int!) {
  user_books(where: {status_id: {_eq: 1}}, limit: $limit) {
    book {` + bookFields + `}
  }
}`,
		root: []string{"user_books", "book"},
	},
}
